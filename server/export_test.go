package server

import (
	"net/http"

	"github.com/n9te9/go-graphql-stitching-gateway/gateway"
	"github.com/n9te9/go-graphql-stitching-gateway/registry"
)

func NewMuxForTest(reg *registry.Registry, endpoint string) http.Handler {
	return newMux(reg, endpoint)
}

func SubgraphAddrsForTest(opt gateway.GatewayOption) (map[string]string, error) {
	return subgraphAddrs(opt)
}
