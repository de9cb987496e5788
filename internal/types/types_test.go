package types

import "testing"

func TestParseAddressType(t *testing.T) {
	tests := []struct {
		in      string
		want    AddressType
		wantErr bool
	}{
		{"0", AddressTypeEVM, false},
		{"evm", AddressTypeEVM, false},
		{"EVM", AddressTypeEVM, false},
		{"5", AddressTypeMidnight, false},
		{"polkadot", AddressTypePolkadot, false},
		{"-1", AddressTypeNone, false},
		{"8", AddressTypeNone, true},
		{"solana", AddressTypeNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddressType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddressType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAddressType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddressTypeString(t *testing.T) {
	if AddressTypeCardano.String() != "cardano" {
		t.Errorf("expected cardano, got %s", AddressTypeCardano.String())
	}
	if AddressType(42).String() != "unknown(42)" {
		t.Errorf("unexpected name for unknown type: %s", AddressType(42).String())
	}
}

func TestConfirmationLevelIsValid(t *testing.T) {
	for _, c := range []ConfirmationLevel{ConfirmNoWait, ConfirmReceipt, ConfirmProcessed} {
		if !c.IsValid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if ConfirmationLevel("eventually").IsValid() {
		t.Error("unknown confirmation level should be invalid")
	}
}

func TestIsStorableText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"alice", true},
		{"", true},
		{"名前です", true},
		{"a\x00bc", false},
		{"\x00", false},
		{"bad\xffutf8", false},
	}
	for _, tt := range tests {
		if got := IsStorableText(tt.in); got != tt.want {
			t.Errorf("IsStorableText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
