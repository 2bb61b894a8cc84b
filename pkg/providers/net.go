package providers

import (
	"context"
	"net"

	"github.com/stasisproject/stasis/pkg/capsule"
)

// NetProvider captures network connections and listeners as endpoint
// descriptions. Sockets are process-local kernel state; the payload
// records the network and addresses so the receiving side can decide
// whether and how to redial. Rebuild returns a ReconnectionDescriptor
// of kind "socket" and never dials.
type NetProvider struct{}

// NewNetProvider returns the network connection provider.
func NewNetProvider() *NetProvider {
	return &NetProvider{}
}

func (p *NetProvider) Name() string  { return "net.conn" }
func (p *NetProvider) Priority() int { return 100 }

func (p *NetProvider) Match(v any) bool {
	switch v.(type) {
	case net.Conn, net.Listener:
		return true
	}
	return false
}

func (p *NetProvider) Extract(ctx context.Context, v any, opts *capsule.Options) (*capsule.StateBundle, error) {
	b := capsule.NewBundle()
	switch c := v.(type) {
	case net.Conn:
		b.Set("role", "conn")
		if addr := c.LocalAddr(); addr != nil {
			b.Set("network", addr.Network())
			b.Set("local", addr.String())
		}
		if addr := c.RemoteAddr(); addr != nil {
			b.Set("remote", addr.String())
		}
	case net.Listener:
		b.Set("role", "listener")
		if addr := c.Addr(); addr != nil {
			b.Set("network", addr.Network())
			b.Set("local", addr.String())
		}
	}
	return b, nil
}

func (p *NetProvider) Rebuild(ctx context.Context, b *capsule.StateBundle) (any, error) {
	role, err := b.MustString("role")
	if err != nil {
		return nil, err
	}
	params := map[string]any{"role": role}
	if network, ok := b.String("network"); ok {
		params["network"] = network
	}
	if local, ok := b.String("local"); ok {
		params["local"] = local
	}
	if remote, ok := b.String("remote"); ok {
		params["remote"] = remote
	}
	return &capsule.ReconnectionDescriptor{
		ResourceKind: "socket",
		Params:       params,
	}, nil
}
