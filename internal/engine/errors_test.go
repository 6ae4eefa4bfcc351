package engine

import (
	"errors"
	"testing"
)

func TestCodeError(t *testing.T) {
	tests := []struct {
		code int32
		want error
	}{
		{CodeSuccess, nil},
		{42, nil},
		{CodeInvalidArgument, ErrInvalidArgument},
		{CodeFailure, ErrFailure},
		{CodeNotAvailable, ErrNotAvailable},
		{CodeBufferTooSmall, ErrBufferTooSmall},
	}

	for _, tt := range tests {
		err := CodeError(tt.code)
		if tt.want == nil {
			if err != nil {
				t.Errorf("CodeError(%d) = %v, want nil", tt.code, err)
			}
			continue
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("CodeError(%d) = %v, want %v", tt.code, err, tt.want)
		}
	}
}

func TestCodeError_Unknown(t *testing.T) {
	err := CodeError(-17)

	var ce *CodeErr
	if !errors.As(err, &ce) {
		t.Fatalf("CodeError(-17) = %T, want *CodeErr", err)
	}
	if ce.Code != -17 {
		t.Errorf("Code = %d, want -17", ce.Code)
	}
	if !errors.Is(err, ErrFailure) {
		t.Error("unknown code should unwrap to ErrFailure")
	}
}

func TestResult(t *testing.T) {
	n, err := Result(7)
	if err != nil || n != 7 {
		t.Errorf("Result(7) = %d, %v; want 7, nil", n, err)
	}

	n, err = Result(CodeBufferTooSmall)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("Result(-4) err = %v, want ErrBufferTooSmall", err)
	}
	if n != 0 {
		t.Errorf("Result(-4) n = %d, want 0", n)
	}
}

func TestEnumStrings(t *testing.T) {
	if StateClosed.String() != "closed" {
		t.Errorf("StateClosed = %q", StateClosed.String())
	}
	if GatheringComplete.String() != "complete" {
		t.Errorf("GatheringComplete = %q", GatheringComplete.String())
	}
	if SignalingHaveRemoteOffer.String() != "have-remote-offer" {
		t.Errorf("SignalingHaveRemoteOffer = %q", SignalingHaveRemoteOffer.String())
	}
	if CodecOpus.String() != "opus" {
		t.Errorf("CodecOpus = %q", CodecOpus.String())
	}
	if CallbackMessage.String() != "message" {
		t.Errorf("CallbackMessage = %q", CallbackMessage.String())
	}
}
