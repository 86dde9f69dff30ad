package persist

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// testDSN returns a unique shared-memory DSN for test isolation.
func testDSN(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

func newTestSQLiteKV(t *testing.T) *SQLiteKV {
	t.Helper()
	kv, err := NewSQLiteKV(SQLiteKVConfig{DSN: testDSN(t)})
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := kv.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || got != "v2" {
		t.Fatalf("Get(k) = %q, %v, %v; want v2", got, ok, err)
	}
	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove absent: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}
}

// --- MemKV ---

func TestMemKV_CRUD(t *testing.T) {
	exerciseKV(t, NewMemKV(MemKVConfig{}))
}

func TestMemKV_Quota(t *testing.T) {
	kv := NewMemKV(MemKVConfig{MaxBytes: 10})
	ctx := context.Background()

	if err := kv.Set(ctx, "a", "123456789"); err != nil {
		t.Fatalf("Set at quota: %v", err)
	}
	if err := kv.Set(ctx, "b", "x"); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set over quota err = %v, want ErrQuotaExceeded", err)
	}
	// Replacing a value frees its old size first.
	if err := kv.Set(ctx, "a", "12345"); err != nil {
		t.Fatalf("shrinking Set: %v", err)
	}
	if err := kv.Set(ctx, "b", "x"); err != nil {
		t.Fatalf("Set after shrink: %v", err)
	}
}

func TestMemKV_CancelledContext(t *testing.T) {
	kv := NewMemKV(MemKVConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := kv.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Errorf("Set err = %v, want context.Canceled", err)
	}
}

// --- SQLiteKV ---

func TestSQLiteKV_CRUD(t *testing.T) {
	exerciseKV(t, newTestSQLiteKV(t))
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.db")
	ctx := context.Background()

	kv, err := NewSQLiteKV(SQLiteKVConfig{DSN: path})
	if err != nil {
		t.Fatalf("NewSQLiteKV: %v", err)
	}
	if err := PaymentMethodCodec.Save(ctx, kv, "Stripe"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	kv.Close()

	reopened, err := NewSQLiteKV(SQLiteKVConfig{DSN: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	loaded := PaymentMethodCodec.Load(ctx, reopened)
	if !loaded.OK() || loaded.Value != "Stripe" {
		t.Errorf("Load = %+v, want Stripe", loaded)
	}
}

func TestSQLiteKV_EmptyDSN(t *testing.T) {
	if _, err := NewSQLiteKV(SQLiteKVConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestSQLiteKV_NilReceiver(t *testing.T) {
	var kv *SQLiteKV
	if _, _, err := kv.Get(context.Background(), "k"); err == nil {
		t.Error("expected error from nil kv")
	}
	if err := kv.Close(); err != nil {
		t.Errorf("Close on nil kv: %v", err)
	}
}

// --- Codec ---

func TestCodec_LoadStatuses(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV(MemKVConfig{})

	if got := UserInfoCodec.Load(ctx, kv); got.Status != StatusMissing || got.Err != nil {
		t.Errorf("missing user = %+v", got)
	}

	if err := UserInfoCodec.Save(ctx, kv, testUser()); err != nil {
		t.Fatalf("Save user: %v", err)
	}
	if got := UserInfoCodec.Load(ctx, kv); !got.OK() || got.Value != testUser() {
		t.Errorf("stored user = %+v", got)
	}

	_ = kv.Set(ctx, KeyUserInfo, "not json")
	if got := UserInfoCodec.Load(ctx, kv); got.Status != StatusMalformed {
		t.Errorf("garbage user status = %s, want malformed", got.Status)
	}
}

func TestCodec_CartItemsNullIsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemKV(MemKVConfig{})
	_ = kv.Set(ctx, KeyCartItems, "null")

	got := CartItemsCodec.Load(ctx, kv)
	if !got.OK() {
		t.Fatalf("status = %s, want ok", got.Status)
	}
	if got.Value == nil || len(got.Value) != 0 {
		t.Errorf("Value = %#v, want empty non-nil slice", got.Value)
	}
}

func TestCodec_PaymentMethodRejectsEmpty(t *testing.T) {
	err := PaymentMethodCodec.Save(context.Background(), NewMemKV(MemKVConfig{}), " ")
	var perr *Error
	if !errors.As(err, &perr) || perr.Op != "encode" {
		t.Errorf("err = %v, want encode *persist.Error", err)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusMissing, "missing"},
		{StatusOK, "ok"},
		{StatusMalformed, "malformed"},
		{StatusUnavailable, "unavailable"},
		{Status(9), "status(9)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", int(tt.status), got, tt.want)
		}
	}
}
