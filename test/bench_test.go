package test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"ovs-unixctl/appctl"
	"ovs-unixctl/client"
	"ovs-unixctl/codec"
	"ovs-unixctl/message"
	"ovs-unixctl/registry"
)

// ---- setup ----

func setupCtl(b *testing.B) *appctl.Ctl {
	rundir, _ := startVswitchd(b)
	ctl, err := appctl.New(context.Background(), appctl.WithRundir(rundir), appctl.WithTimeout(3*time.Second))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { ctl.Close() })
	return ctl
}

// ---- benchmarks ----

// Scenario 1: one caller, sequential calls on one connection.
func BenchmarkSerialCall(b *testing.B) {
	ctl := setupCtl(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ctl.Run(ctx, "echo", "bond0"); err != nil {
			b.Fatal(err)
		}
	}
}

// Scenario 2: many callers sharing one Client; exchanges serialize on its lock.
func BenchmarkSharedClient(b *testing.B) {
	rundir, _ := startVswitchd(b)
	path, err := registry.FindSocket("ovs-vswitchd", rundir)
	if err != nil {
		b.Fatal(err)
	}
	cli, err := client.NewUnix(context.Background(), path, 3*time.Second)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { cli.Close() })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, _, err := cli.CallString(ctx, "echo", "bond0"); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// Scenario 3: many callers, one pooled connection each.
func BenchmarkPooledCall(b *testing.B) {
	rundir, _ := startVswitchd(b)
	pool := appctl.NewTargetPool("ovs-vswitchd", 8, appctl.WithRundir(rundir), appctl.WithTimeout(3*time.Second))
	b.Cleanup(func() { pool.Close() })

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			err := pool.Do(ctx, func(ctl *appctl.Ctl) error {
				_, err := ctl.Run(ctx, "echo", "bond0")
				return err
			})
			if err != nil {
				b.Error(err)
				return
			}
		}
	})
}

// Scenario 4: codec only, no socket.
func BenchmarkCodecJSON(b *testing.B) {
	cdc := codec.GetCodec(codec.CodecTypeJSON)
	req := message.NewRequest("bond/show", []string{"bond0"}, 1)
	reply := []byte(`{"result":"---- bond0 ----\nbond_mode: active-backup\n","error":null,"id":1}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cdc.Encode(req); err != nil {
			b.Fatal(err)
		}
		var resp message.Response
		if err := cdc.NewDecoder(bytes.NewReader(reply)).Decode(&resp); err != nil {
			b.Fatal(err)
		}
	}
}
