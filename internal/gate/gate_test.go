package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeOracle struct {
	statuses map[int64]Status
	errs     map[int64]error
	calls    []int64
}

func (o *fakeOracle) CheckMembership(_ context.Context, channelID, _ int64) (Status, error) {
	o.calls = append(o.calls, channelID)
	if err := o.errs[channelID]; err != nil {
		return StatusOther, err
	}
	if s, ok := o.statuses[channelID]; ok {
		return s, nil
	}
	return StatusOther, nil
}

type countingRecorder struct {
	allowed, blocked, oracleErrors int
}

func (r *countingRecorder) GateDecision(allowed bool) {
	if allowed {
		r.allowed++
	} else {
		r.blocked++
	}
}

func (r *countingRecorder) OracleError() { r.oracleErrors++ }

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, []int64{1}, nil, nil)
	assert.Error(t, err)

	_, err = New(&fakeOracle{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestGate_IsEligible(t *testing.T) {
	channels := []int64{-100111, -100222, -100333}

	tests := []struct {
		name     string
		statuses map[int64]Status
		errs     map[int64]error
		want     bool
	}{
		{
			name:     "member everywhere",
			statuses: map[int64]Status{-100111: StatusMember, -100222: StatusAdministrator, -100333: StatusCreator},
			want:     true,
		},
		{
			name:     "left one channel",
			statuses: map[int64]Status{-100111: StatusMember, -100222: StatusOther, -100333: StatusMember},
			want:     false,
		},
		{
			name:     "oracle error on last channel",
			statuses: map[int64]Status{-100111: StatusMember, -100222: StatusMember},
			errs:     map[int64]error{-100333: errors.New("Bad Request: chat not found")},
			want:     false,
		},
		{
			name: "unknown status",
			statuses: map[int64]Status{
				-100111: StatusMember, -100222: Status("restricted"), -100333: StatusMember,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &countingRecorder{}
			g, err := New(&fakeOracle{statuses: tt.statuses, errs: tt.errs}, channels, recorder, zaptest.NewLogger(t))
			require.NoError(t, err)

			assert.Equal(t, tt.want, g.IsEligible(context.Background(), 42))
			if tt.want {
				assert.Equal(t, 1, recorder.allowed)
			} else {
				assert.Equal(t, 1, recorder.blocked)
			}
			assert.Equal(t, len(tt.errs), recorder.oracleErrors)
		})
	}
}

func TestGate_ShortCircuits(t *testing.T) {
	oracle := &fakeOracle{statuses: map[int64]Status{1: StatusOther, 2: StatusMember}}
	g, err := New(oracle, []int64{1, 2}, nil, nil)
	require.NoError(t, err)

	assert.False(t, g.IsEligible(context.Background(), 42))
	assert.Equal(t, []int64{1}, oracle.calls)
}

func TestGate_NeverCaches(t *testing.T) {
	oracle := &fakeOracle{statuses: map[int64]Status{1: StatusOther}}
	g, err := New(oracle, []int64{1}, nil, nil)
	require.NoError(t, err)

	assert.False(t, g.IsEligible(context.Background(), 42))
	oracle.statuses[1] = StatusMember
	assert.True(t, g.IsEligible(context.Background(), 42))
	assert.Len(t, oracle.calls, 2)
}

type fakeChatMemberAPI struct {
	member telego.ChatMember
	err    error
	params *telego.GetChatMemberParams
}

func (f *fakeChatMemberAPI) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.params = params
	return f.member, f.err
}

func TestTelegramOracle(t *testing.T) {
	ctx := context.Background()

	t.Run("member", func(t *testing.T) {
		api := &fakeChatMemberAPI{member: &telego.ChatMemberMember{Status: telego.MemberStatusMember}}
		status, err := NewTelegramOracle(api).CheckMembership(ctx, -100111, 42)
		require.NoError(t, err)
		assert.Equal(t, StatusMember, status)
		assert.Equal(t, int64(-100111), api.params.ChatID.ID)
		assert.Equal(t, int64(42), api.params.UserID)
	})

	t.Run("transport error", func(t *testing.T) {
		api := &fakeChatMemberAPI{err: errors.New("telego: getChatMember: api: 400")}
		status, err := NewTelegramOracle(api).CheckMembership(ctx, -100111, 42)
		assert.Error(t, err)
		assert.False(t, status.Joined())
	})
}

func TestStatusFromTelegram(t *testing.T) {
	assert.Equal(t, StatusCreator, statusFromTelegram(telego.MemberStatusCreator))
	assert.Equal(t, StatusAdministrator, statusFromTelegram(telego.MemberStatusAdministrator))
	assert.Equal(t, StatusMember, statusFromTelegram(telego.MemberStatusMember))
	assert.Equal(t, StatusOther, statusFromTelegram(telego.MemberStatusRestricted))
	assert.Equal(t, StatusOther, statusFromTelegram(telego.MemberStatusLeft))
	assert.Equal(t, StatusOther, statusFromTelegram("kicked"))
}
