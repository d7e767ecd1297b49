package leader

import "context"

// StaticLeader is used when a single instance runs without Redis: that
// instance is always the leader.
type StaticLeader struct {
	InstanceID string
}

func (s StaticLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	return instanceID == s.InstanceID, nil
}

func (s StaticLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	return instanceID == s.InstanceID, nil
}

func (s StaticLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return nil
}
