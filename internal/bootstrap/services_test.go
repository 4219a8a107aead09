package bootstrap

import (
	"testing"
)

func TestErrorChannelCapacity(t *testing.T) {
	errCh := NewErrorChannel()

	if cap(errCh) != errChannelCapacity {
		t.Fatalf("error channel capacity = %d, want %d", cap(errCh), errChannelCapacity)
	}

	// Every slot must accept a write without a reader, so a failed
	// goroutine never blocks on report.
	for i := 0; i < errChannelCapacity; i++ {
		select {
		case errCh <- nil:
		default:
			t.Fatalf("error channel blocked at write %d", i)
		}
	}
}

func TestInitializeServicesWithoutInfra(t *testing.T) {
	// With neither database nor redis the container degrades to nil
	// services instead of panicking.
	container := InitializeServices(ServiceDeps{Logger: testLogger()})

	if container.Auth != nil {
		t.Errorf("Auth = %v, want nil", container.Auth)
	}
	if container.OTP != nil {
		t.Errorf("OTP = %v, want nil", container.OTP)
	}
	if container.Audit != nil {
		t.Errorf("Audit = %v, want nil", container.Audit)
	}
	if container.Tokens != nil {
		t.Errorf("Tokens = %v, want nil", container.Tokens)
	}
}
