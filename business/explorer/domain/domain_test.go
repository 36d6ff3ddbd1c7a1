package domain

import (
	"slices"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	chainDomain "github.com/fd1az/substrate-explorer/business/chain/domain"
	"github.com/fd1az/substrate-explorer/internal/apperror"
)

func header(n uint64) chainDomain.Header {
	return chainDomain.Header{Number: n, Hash: common.BytesToHash([]byte{0xbe, byte(n)})}
}

func numbers(hs []chainDomain.Header) []uint64 {
	out := make([]uint64, len(hs))
	for i, h := range hs {
		out[i] = h.Number
	}
	return out
}

func TestHeadLog(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		push     []uint64
		want     []uint64
		accepted int
	}{
		{
			name: "empty",
			size: 3,
			want: []uint64{},
		},
		{
			name:     "newest_first",
			size:     3,
			push:     []uint64{1, 2},
			want:     []uint64{2, 1},
			accepted: 2,
		},
		{
			name:     "evicts_oldest",
			size:     3,
			push:     []uint64{1, 2, 3, 4, 5},
			want:     []uint64{5, 4, 3},
			accepted: 5,
		},
		{
			name:     "repeat_of_newest_ignored",
			size:     3,
			push:     []uint64{1, 2, 2},
			want:     []uint64{2, 1},
			accepted: 2,
		},
		{
			name:     "size_below_one_keeps_one",
			size:     0,
			push:     []uint64{1, 2},
			want:     []uint64{2},
			accepted: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewHeadLog(tt.size)

			accepted := 0
			for _, n := range tt.push {
				if l.Push(header(n)) {
					accepted++
				}
			}
			if accepted != tt.accepted {
				t.Errorf("accepted %d pushes, want %d", accepted, tt.accepted)
			}

			if got := numbers(l.List()); !slices.Equal(got, tt.want) {
				t.Errorf("List() = %v, want %v", got, tt.want)
			}
			if l.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", l.Len(), len(tt.want))
			}

			latest, ok := l.Latest()
			if ok != (len(tt.want) > 0) {
				t.Fatalf("Latest() ok = %v with %d heads", ok, len(tt.want))
			}
			if ok && latest.Number != tt.want[0] {
				t.Errorf("Latest() = #%d, want #%d", latest.Number, tt.want[0])
			}
		})
	}
}

func TestHeadLog_Reset(t *testing.T) {
	l := NewHeadLog(2)
	l.Push(header(1))
	l.Reset()

	if l.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", l.Len())
	}
	// a reset log accepts the old head again
	if !l.Push(header(1)) {
		t.Error("Push after Reset rejected")
	}
}

func TestHeadLog_ListIsCopy(t *testing.T) {
	l := NewHeadLog(2)
	l.Push(header(1))

	got := l.List()
	got[0].Number = 99

	if latest, _ := l.Latest(); latest.Number != 1 {
		t.Errorf("mutating List() changed the log: latest = #%d", latest.Number)
	}
}

func TestClassifyQuery(t *testing.T) {
	hash := "0x" + strings.Repeat("Ab", 32)
	alice := "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

	tests := []struct {
		name     string
		input    string
		wantKind QueryKind
		wantNorm string
		wantCode apperror.Code
	}{
		{name: "height", input: "42", wantKind: QueryHeight, wantNorm: "42"},
		{name: "padded_height", input: " 7\n", wantKind: QueryHeight, wantNorm: "7"},
		{name: "hash", input: hash, wantKind: QueryHash, wantNorm: strings.ToLower(hash)},
		{name: "short_hex", input: "0x1234", wantKind: QueryAddress, wantNorm: "0x1234"},
		{name: "non_hex_64", input: "0x" + strings.Repeat("z", 64), wantKind: QueryAddress, wantNorm: "0x" + strings.Repeat("z", 64)},
		{name: "ss58", input: alice, wantKind: QueryAddress, wantNorm: alice},
		{name: "blank", input: "   ", wantCode: apperror.CodeRequiredField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, norm, err := ClassifyQuery(tt.input)
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) {
					t.Fatalf("ClassifyQuery(%q) error = %v, want code %s", tt.input, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ClassifyQuery(%q) unexpected error: %v", tt.input, err)
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", kind, tt.wantKind)
			}
			if norm != tt.wantNorm {
				t.Errorf("normalized = %q, want %q", norm, tt.wantNorm)
			}
		})
	}
}
