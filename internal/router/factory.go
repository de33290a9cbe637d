// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package router

import (
	"fmt"

	"github.com/rapidaai/sessionrouter/internal/commons"
	"github.com/rapidaai/sessionrouter/internal/transport"
	"github.com/rapidaai/sessionrouter/internal/transport/http"
	"github.com/rapidaai/sessionrouter/internal/transport/sdt"
	"github.com/rapidaai/sessionrouter/internal/transport/ws"
	"github.com/rapidaai/sessionrouter/internal/types"
	"github.com/rapidaai/sessionrouter/internal/urlutil"
)

// newTransport classifies dest.URL and constructs the matching
// transport.Transport implementation, per spec.md §6's five destination
// schemes.
func newTransport(log commons.Logger, dest types.Destination, params types.TransportParams) (transport.Transport, error) {
	u, err := urlutil.Parse(dest.URL)
	if err != nil {
		return nil, fmt.Errorf("sessionrouter: parse destination url %q: %w", dest.URL, err)
	}

	switch u.Protocol {
	case types.ProtocolWS, types.ProtocolWSS:
		return ws.New(log, ws.Config{URL: dest.URL, Params: params}), nil
	case types.ProtocolHTTP, types.ProtocolHTTPS:
		return http.New(log, http.Config{URL: dest.URL, Params: params}), nil
	case types.ProtocolSDT:
		network := "tcp"
		return sdt.New(log, sdt.Config{Network: network, Addr: u.Host + fmt.Sprintf(":%d", u.Port), Params: params}), nil
	default:
		return nil, fmt.Errorf("sessionrouter: unsupported protocol %s for url %q", u.Protocol.String(), dest.URL)
	}
}
