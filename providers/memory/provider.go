// Package memory implements the provider capability against an
// in-process resource table. It backs `terrane plan` previews, local
// experimentation, and the engine's conformance tests: attributes are
// synthesized deterministically per kind, so runs are reproducible.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/provider"
)

type resource struct {
	kind  ir.Kind
	spec  map[string]any
	attrs map[string]any
}

type Provider struct {
	mu        sync.Mutex
	serial    int
	resources map[string]*resource
}

func New() *Provider {
	return &Provider{
		resources: make(map[string]*resource),
	}
}

func (p *Provider) Create(ctx context.Context, kind ir.Kind, spec map[string]any) (string, map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.serial++
	id := fmt.Sprintf("mem-%s-%04d", kind, p.serial)
	attrs := synthesize(kind, id, spec)
	p.resources[id] = &resource{kind: kind, spec: spec, attrs: attrs}
	return id, attrs, nil
}

func (p *Provider) Update(ctx context.Context, kind ir.Kind, providerID string, spec map[string]any) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[providerID]
	if !ok {
		return nil, provider.NewFatal(fmt.Sprintf("no such resource %s", providerID), nil)
	}
	res.spec = spec
	res.attrs = synthesize(kind, providerID, spec)
	return res.attrs, nil
}

func (p *Provider) Delete(ctx context.Context, kind ir.Kind, providerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, providerID)
	return nil
}

func (p *Provider) Read(ctx context.Context, kind ir.Kind, providerID string) (map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[providerID]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return res.attrs, nil
}

// Len reports how many resources currently exist.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}

// synthesize fills the kind's output schema with plausible values.
// Values derive only from the id and the spec, keeping runs
// reproducible.
func synthesize(kind ir.Kind, id string, spec map[string]any) map[string]any {
	name, _ := spec["name"].(string)
	if name == "" {
		name = id
	}

	attrs := map[string]any{"id": id}
	switch kind {
	case ir.KindNetwork, ir.KindSubnet:
		cidr, _ := spec["cidr"].(string)
		if cidr == "" {
			cidr = "10.0.0.0/16"
		}
		attrs["cidr"] = cidr
		if kind == ir.KindSubnet {
			zone, _ := spec["zone"].(string)
			if zone == "" {
				zone = "zone-a"
			}
			attrs["zone"] = zone
		}
	case ir.KindManagedDatabase:
		attrs["endpoint"] = fmt.Sprintf("%s.db.internal", name)
		attrs["port"] = 5432
		attrs["connection"] = fmt.Sprintf("postgres://%s.db.internal:5432/app", name)
	case ir.KindComputeService:
		attrs["dns"] = fmt.Sprintf("%s.svc.internal", name)
		replicas, ok := spec["replicas"].(int)
		if !ok {
			replicas = 1
		}
		attrs["replicas"] = replicas
	case ir.KindLoadBalancer:
		attrs["dns"] = fmt.Sprintf("%s.lb.internal", name)
		attrs["zone"] = "Z-INTERNAL"
	case ir.KindListener:
		port, ok := spec["port"].(int)
		if !ok {
			port = 443
		}
		attrs["port"] = port
	case ir.KindDNSRecord:
		fqdn, _ := spec["name"].(string)
		attrs["fqdn"] = fqdn
	case ir.KindCertificate:
		domain, _ := spec["domain"].(string)
		attrs["domain"] = domain
		attrs["expiry"] = "2031-01-01T00:00:00Z"
	case ir.KindLogGroup:
		attrs["name"] = name
	case ir.KindStorageBucket:
		attrs["domain"] = fmt.Sprintf("%s.bucket.internal", name)
	}
	return attrs
}
