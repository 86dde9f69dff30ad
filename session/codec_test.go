package session

import (
	"strings"
	"testing"
)

func TestActionCodec_RoundTripReplays(t *testing.T) {
	actions := []Action{
		SwitchMode{},
		UserSignin{User: testUser()},
		CartAddItem{Item: testItem("p1", 1999, 2, 5)},
		CartRemoveItem{Item: CartItem{ID: "p1"}},
		CartAddItem{Item: testItem("p2", 500, 1, 2)},
		SaveShippingAddress{Address: testAddress()},
		SavePaymentMethod{Method: PaymentPayPal},
		CartClearItems{},
		UserSignout{},
	}

	decoded := make([]Action, 0, len(actions))
	for _, a := range actions {
		raw, err := MarshalAction(a)
		if err != nil {
			t.Fatalf("MarshalAction(%s): %v", a.Kind(), err)
		}
		if !strings.Contains(string(raw), string(a.Kind())) {
			t.Errorf("encoded %s lacks its type: %s", a.Kind(), raw)
		}
		back, err := UnmarshalAction(raw)
		if err != nil {
			t.Fatalf("UnmarshalAction(%s): %v", raw, err)
		}
		if back.Kind() != a.Kind() {
			t.Errorf("kind = %s, want %s", back.Kind(), a.Kind())
		}
		decoded = append(decoded, back)
	}

	for n := 1; n <= len(actions); n++ {
		want := Replay(DefaultState(ModeLight), actions[:n])
		got := Replay(DefaultState(ModeLight), decoded[:n])
		if !got.Equal(want) {
			t.Fatalf("replay of %d decoded actions diverged:\n got %+v\nwant %+v", n, got, want)
		}
	}
}

func TestUnmarshalAction_Errors(t *testing.T) {
	tests := []string{
		`not json`,
		`{"type":"NOPE"}`,
		`{"type":"CART_ADD_ITEM"}`,
		`{"type":"CART_ADD_ITEM","payload":{"price":"x"}}`,
	}
	for _, raw := range tests {
		if _, err := UnmarshalAction([]byte(raw)); err == nil {
			t.Errorf("UnmarshalAction(%s): expected error", raw)
		}
	}
}

func TestMarshalAction_RejectsNil(t *testing.T) {
	if _, err := MarshalAction(nil); err == nil {
		t.Error("expected error for nil action")
	}
}

func TestRedactAction(t *testing.T) {
	redacted := RedactAction(UserSignin{User: testUser()})
	signin, ok := redacted.(UserSignin)
	if !ok {
		t.Fatalf("RedactAction returned %T", redacted)
	}
	if signin.User.Token != MaskedToken {
		t.Errorf("Token = %q, want masked", signin.User.Token)
	}
	if signin.User.Email != testUser().Email {
		t.Error("RedactAction altered non-secret fields")
	}

	other := SwitchMode{}
	if RedactAction(other) != Action(other) {
		t.Error("RedactAction altered a non-signin action")
	}
}
