// Package di contains dependency injection tokens for the explorer context.
package di

import (
	"github.com/fd1az/substrate-explorer/business/explorer/app"
	"github.com/fd1az/substrate-explorer/business/explorer/infra/httpapi"
	"github.com/fd1az/substrate-explorer/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Explorer = di.NewToken[*app.Explorer]("explorer.Explorer")
)

// Private dependency tokens - internal to explorer module
var (
	Reporter   = di.NewToken[app.Reporter]("explorer:reporter")
	APIHandler = di.NewToken[*httpapi.Handler]("explorer:apiHandler")
)

func GetExplorer(c di.ServiceRegistry) *app.Explorer {
	return di.GetToken(c, Explorer)
}
