package safe

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"matchcore.com/pkg/logger"
)

func TestGoDone_RecoversPanic(t *testing.T) {
	buf := &bytes.Buffer{}
	logger.Log = zap.New(zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(buf),
		zap.InfoLevel,
	))
	defer func() { logger.Log = nil }()

	done := GoDone(context.Background(), func(ctx context.Context) {
		panic("book corrupted")
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
	assert.Contains(t, buf.String(), "goroutine panic recovered")
	assert.Contains(t, buf.String(), "book corrupted")
}

func TestGo_Runs(t *testing.T) {
	ran := make(chan struct{})
	Go(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fn not executed")
	}
}

func TestGoDone_NilContext(t *testing.T) {
	var got context.Context
	//nolint:staticcheck // nil ctx 是被测行为
	done := GoDone(nil, func(ctx context.Context) { got = ctx })
	<-done
	require.NotNil(t, got)
}
