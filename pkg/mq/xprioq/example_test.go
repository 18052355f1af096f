package xprioq_test

import (
	"context"
	"fmt"

	"github.com/omeyang/xprioq/pkg/mq/xmemq"
	"github.com/omeyang/xprioq/pkg/mq/xprioq"
)

func Example() {
	ctx := context.Background()
	broker := xmemq.New(xmemq.WithQueues("high", "low"))
	_, _ = broker.Send(ctx, "high", []byte("a"), nil)
	_, _ = broker.Send(ctx, "high", []byte("b"), nil)

	cfg := xprioq.DefaultConfig()
	cfg.MaxMessages = 2
	cfg.Queues = []xprioq.QueueWeight{
		{Name: "high", Weight: 0.8},
		{Name: "low", Weight: 0.2},
	}
	client, err := xprioq.New(ctx, broker, cfg, xprioq.WithSeed(1))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Close()

	seq, _ := client.ReceiveN(ctx, 2)
	for msg, err := range seq {
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(msg.Queue, string(msg.Body))
		_ = client.Acknowledge(ctx, msg.AckToken)
	}
	fmt.Println("pending:", client.PendingAcks())
	// Output:
	// high a
	// high b
	// pending: 0
}

func ExampleConfig_Validate() {
	cfg := xprioq.DefaultConfig()
	cfg.Queues = []xprioq.QueueWeight{
		{Name: "a", Weight: 0.5},
		{Name: "b", Weight: 0.25},
		{Name: "c", Weight: 0.25},
	}
	fmt.Println(cfg.Validate())
	// Output:
	// xprioq: invalid config: queues "b" and "c" share weight 0.25
}
