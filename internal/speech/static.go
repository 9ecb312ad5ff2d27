package speech

import "context"

// Static replays fixed audio chunks instead of calling a provider.
type Static struct {
	Chunks [][]byte
	// Err, when set, is reported after the chunks are delivered.
	Err error
}

func (st Static) Stream(ctx context.Context, _ Request) (*Stream, error) {
	s := newStream()
	go func() {
		defer s.finish()
		for _, c := range st.Chunks {
			if !s.send(ctx, c) {
				s.fail(ctx.Err())
				return
			}
		}
		s.fail(st.Err)
	}()
	return s, nil
}
