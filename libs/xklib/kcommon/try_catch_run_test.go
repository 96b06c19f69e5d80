package kcommon

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
)

func TestTryCatchRun_NoPanic(t *testing.T) {
	ran := false
	ke := TryCatchRun(context.Background(), func() { ran = true })
	assert.Nil(t, ke)
	assert.True(t, ran)
}

func TestTryCatchRun_KerrorPassThrough(t *testing.T) {
	ke := TryCatchRun(context.Background(), func() {
		panic(kerror.Create("GeneOutOfRange", "gene 7 >= 2").With("gene", 7))
	})
	assert.NotNil(t, ke)
	assert.Equal(t, "GeneOutOfRange", ke.Type)
	assert.Equal(t, 7, ke.GetDetail("gene"))
}

func TestTryCatchRun_RuntimeError(t *testing.T) {
	ctx := context.Background()
	genes := []uint{0, 1}
	idx := 5
	ke := TryCatchRun(ctx, func() {
		_ = genes[idx]
	})
	assert.NotNil(t, ke)
	assert.Equal(t, "UnknownError", ke.Type)
	assert.NotEmpty(t, ke.Stack)

	logEntry := klogging.Warning(ctx).WithError(ke)
	assert.NotNil(t, getDetail(logEntry.Details, "stack"))
	assert.NotNil(t, getDetail(logEntry.Details, "causedBy"))
	assert.NotNil(t, getDetail(logEntry.Details, "errorType"))
}

func TestTryCatchRun_PlainError(t *testing.T) {
	cause := errors.New("boom")
	ke := TryCatchRun(context.Background(), func() { panic(cause) })
	assert.True(t, errors.Is(ke, cause))
}

func TestTryCatchRun_NonErrorPanic(t *testing.T) {
	ke := TryCatchRun(context.Background(), func() { panic("not an error") })
	assert.NotNil(t, ke)
	assert.Equal(t, "NonErrorPanic", ke.Type)
	assert.Equal(t, "not an error", ke.Msg)
}

func getDetail(details []klogging.Keypair, key string) interface{} {
	for _, detail := range details {
		if detail.K == key {
			return detail.V
		}
	}
	return nil
}
