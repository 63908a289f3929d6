package multistream

// TopicNewHeads is the one subscription topic the gRPC egress
// currently exposes (rpcapi.BlockchainService.SubscribeHead).
const TopicNewHeads = "newHeads"

// EgressSubscription lists the subscription topics a Multistream is
// asked to serve downstream (e.g. "newHeads"). It is an input to state
// re-derivation: reduce() intersects it against member capabilities to
// decide which topics are actually deliverable right now.
type EgressSubscription struct {
	Topics map[string]struct{}
}

func NewEgressSubscription(topics ...string) EgressSubscription {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return EgressSubscription{Topics: set}
}

func (e EgressSubscription) Supports(topic string) bool {
	_, ok := e.Topics[topic]
	return ok
}
