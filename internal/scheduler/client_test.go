package scheduler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
)

type testConfig struct {
	url   string
	queue string
}

func (c testConfig) GetRedisURL() string      { return c.url }
func (c testConfig) GetRedisTLSInsecure() bool { return false }
func (c testConfig) GetAsynqQueueName() string { return c.queue }
func (c testConfig) GetAsynqConcurrency() int  { return 1 }

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testConfig{}); err == nil {
		t.Fatal("NewClient() with empty redis url should fail")
	}
}

func TestEnqueueAllocationSweep(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig{url: "redis://" + mr.Addr(), queue: "yaadmarket"}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.EnqueueAllocationSweep(context.Background(), AllocationSweepPayload{Batch: 25}); err != nil {
		t.Fatalf("EnqueueAllocationSweep() error = %v", err)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("yaadmarket")
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskAllocationSweep {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskAllocationSweep)
	}

	var payload AllocationSweepPayload
	if err := json.Unmarshal(tasks[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Batch != 25 {
		t.Errorf("payload batch = %d, want 25", payload.Batch)
	}
}

func TestEnqueueOnNilClientIsNoop(t *testing.T) {
	var client *Client
	if err := client.EnqueueAllocationSweep(context.Background(), AllocationSweepPayload{}); err != nil {
		t.Errorf("nil client enqueue error = %v, want nil", err)
	}
}
