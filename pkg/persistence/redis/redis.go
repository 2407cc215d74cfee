// Package redis provides a Redis persistence implementation. Documents are JSON strings, listings
// use set indexes and the compare-and-set paths run under WATCH/MULTI.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/goccy/go-json"
	"github.com/hrflow/hrflow/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "hrflow:"

// Key layout, all under <prefix>t:<tenant>:
//
//	wf:<id>                     workflow document
//	idx:wf                      SET of workflow ids
//	inst:<id>                   instance document
//	idx:inst                    SET of instance ids
//	pa:<id>                     pending action document
//	idx:pa:inst:<instance>      SET of action ids per instance
//	idx:pa:open                 SET of open action ids
//	slot:<instance>:<node>      id of the open action for an approval node
//	audit:<instance>            LIST of audit records
type keys struct {
	prefix string
}

func (k keys) tenant(tenantID string) string { return k.prefix + "t:" + tenantID + ":" }

func (k keys) workflow(tenantID, id string) string { return k.tenant(tenantID) + "wf:" + id }
func (k keys) workflows(tenantID string) string    { return k.tenant(tenantID) + "idx:wf" }
func (k keys) instance(tenantID, id string) string { return k.tenant(tenantID) + "inst:" + id }
func (k keys) instances(tenantID string) string    { return k.tenant(tenantID) + "idx:inst" }
func (k keys) action(tenantID, id string) string   { return k.tenant(tenantID) + "pa:" + id }
func (k keys) openActions(tenantID string) string  { return k.tenant(tenantID) + "idx:pa:open" }

func (k keys) instanceActions(tenantID, instanceID string) string {
	return k.tenant(tenantID) + "idx:pa:inst:" + instanceID
}

func (k keys) slot(tenantID, instanceID, nodeID string) string {
	return k.tenant(tenantID) + "slot:" + instanceID + ":" + nodeID
}

func (k keys) audit(tenantID, instanceID string) string {
	return k.tenant(tenantID) + "audit:" + instanceID
}

// Persistence implements persistence.Persistence on Redis.
type Persistence struct {
	client *goredis.Client
	logger *slog.Logger
	keys   keys

	workflowRepo      *WorkflowRepository
	instanceRepo      *InstanceRepository
	pendingActionRepo *PendingActionRepository
	auditRepo         *AuditRepository
}

// NewPersistence connects to the Redis server named by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistenceWithClient(logger, client, defaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. prefix namespaces every key.
func NewPersistenceWithClient(logger *slog.Logger, client *goredis.Client, prefix string) *Persistence {
	if prefix == "" {
		prefix = defaultPrefix
	}

	p := &Persistence{client: client, logger: logger, keys: keys{prefix: prefix}}

	p.workflowRepo = &WorkflowRepository{p: p}
	p.instanceRepo = &InstanceRepository{p: p}
	p.pendingActionRepo = &PendingActionRepository{p: p}
	p.auditRepo = &AuditRepository{p: p}

	return p
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) PendingActionRepository() persistence.PendingActionRepository {
	return p.pendingActionRepo
}

func (p *Persistence) AuditRepository() persistence.AuditRepository {
	return p.auditRepo
}

// getDocument reads and decodes one key. found is false on redis.Nil.
func getDocument(ctx context.Context, c goredis.Cmdable, key string, v any) (bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return true, nil
}

// loadIndexed decodes every document whose id is a member of the index set.
func loadIndexed[T any](ctx context.Context, c *goredis.Client, index string, key func(id string) string) ([]*T, error) {
	ids, err := c.SMembers(ctx, index).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", index, err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	sort.Strings(ids)

	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = key(id)
	}

	values, err := c.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read documents of %s: %w", index, err)
	}

	out := make([]*T, 0, len(values))

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", docKeys[i], err)
		}

		out = append(out, &doc)
	}

	return out, nil
}
