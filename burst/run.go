// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package burst

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-lpc/psec/internal/queue"
	"golang.org/x/sync/errgroup"
)

// MaxPacketSize is the size of the largest datagram an ACC emits.
const MaxPacketSize = 9000

var pollTimeout = 100 * time.Millisecond

// Run records the packets popped from q until it pops a nil packet.
// Events from unknown boards are logged and skipped; sink errors stop
// the recording.
func (rec *Recorder) Run(q *queue.Queue[[]byte]) error {
	for {
		pkt := q.Pop()
		if pkt == nil {
			return nil
		}
		err := rec.Record(pkt)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnknownBoard):
			rec.msg.Errorf("dropping event: %+v", err)
		default:
			return err
		}
	}
}

// Listen pushes the datagrams received on conn onto q until ctx is
// done. A nil packet is pushed on return to stop the consumer.
func Listen(ctx context.Context, conn net.PacketConn, q *queue.Queue[[]byte]) error {
	defer q.Push(nil)

	buf := make([]byte, MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := conn.SetReadDeadline(time.Now().Add(pollTimeout))
		if err != nil {
			return fmt.Errorf("burst: could not set read deadline: %w", err)
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("burst: could not read packet: %w", err)
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		q.Push(pkt)
	}
}

// Acquire receives packets from conn and records them with rec until
// ctx is done or an error occurs.
func Acquire(ctx context.Context, conn net.PacketConn, rec *Recorder) error {
	var (
		q      = queue.New[[]byte]()
		grp, c = errgroup.WithContext(ctx)
	)
	grp.Go(func() error {
		return Listen(c, conn, q)
	})
	grp.Go(func() error {
		return rec.Run(q)
	})
	return grp.Wait()
}
