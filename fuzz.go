package nmo

import "context"

func Fuzz(data []byte) int {
	ctx, err := NewContext(&Options{})
	if err != nil {
		return 0
	}
	defer ctx.Release()
	s := NewSession(ctx)
	defer s.Close()
	if err := s.LoadBytes(context.Background(), data, 0); err != nil {
		return 0
	}
	return 1
}
