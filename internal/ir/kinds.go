package ir

import "strings"

// Kind identifies a resource kind from the closed, vendor-agnostic set.
type Kind string

const (
	KindNetwork           Kind = "network"
	KindSubnet            Kind = "subnet"
	KindSecurityRule      Kind = "security-rule"
	KindManagedDatabase   Kind = "managed-database"
	KindComputeService    Kind = "compute-service"
	KindLoadBalancer      Kind = "load-balancer"
	KindListener          Kind = "listener"
	KindDNSRecord         Kind = "dns-record"
	KindCertificate       Kind = "certificate"
	KindAlarm             Kind = "alarm"
	KindAutoscalingPolicy Kind = "autoscaling-policy"
	KindLogGroup          Kind = "log-group"
	KindStorageBucket     Kind = "storage-bucket"
	KindBucketPolicy      Kind = "bucket-policy"
)

// KindOutputs lists the output attributes each kind exposes once
// applied. References are validated against this schema.
var KindOutputs = map[Kind][]string{
	KindNetwork:           {"id", "cidr"},
	KindSubnet:            {"id", "cidr", "zone"},
	KindSecurityRule:      {"id"},
	KindManagedDatabase:   {"id", "endpoint", "port", "connection"},
	KindComputeService:    {"id", "dns", "replicas"},
	KindLoadBalancer:      {"id", "dns", "zone"},
	KindListener:          {"id", "port"},
	KindDNSRecord:         {"id", "fqdn"},
	KindCertificate:       {"id", "domain", "expiry"},
	KindAlarm:             {"id"},
	KindAutoscalingPolicy: {"id"},
	KindLogGroup:          {"id", "name"},
	KindStorageBucket:     {"id", "domain"},
	KindBucketPolicy:      {"id"},
}

// KnownKind reports whether k is a member of the closed kind set.
func KnownKind(k Kind) bool {
	_, ok := KindOutputs[k]
	return ok
}

// KindExportsAttr reports whether kind k exposes the output attribute
// named by the first segment of the dotted path attr.
func KindExportsAttr(k Kind, attr string) bool {
	head, _, _ := strings.Cut(attr, ".")
	for _, a := range KindOutputs[k] {
		if a == head {
			return true
		}
	}
	return false
}
