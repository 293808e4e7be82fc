//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/weegigs/wee-ledger-go/support"
)

func application(ctx context.Context, cfg support.Config) (*Application, func(), error) {
	panic(wire.Build(Providers))
}
