package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackerStatusTerminal(t *testing.T) {
	require.False(t, AbtActive.IsTerminal())
	require.True(t, AbtCompleted.IsTerminal())
	require.True(t, AbtDiscontinued.IsTerminal())

	require.False(t, IsoActive.IsTerminal())
	require.True(t, IsoResolved.IsTerminal())
	require.True(t, IsoDischarged.IsTerminal())

	require.False(t, VaxPending.IsTerminal())
	require.True(t, VaxAdministered.IsTerminal())
	require.True(t, VaxDeclined.IsTerminal())
	require.True(t, VaxDischarged.IsTerminal())
}

// 终态没有出边：永远不会被重新"激活"
func TestTrackerStatusTransitions(t *testing.T) {
	require.True(t, AbtActive.CanTransition(AbtDiscontinued))
	require.True(t, AbtActive.CanTransition(AbtCompleted))
	require.False(t, AbtCompleted.CanTransition(AbtActive))
	require.False(t, AbtDiscontinued.CanTransition(AbtActive))

	require.True(t, IsoActive.CanTransition(IsoDischarged))
	require.False(t, IsoDischarged.CanTransition(IsoActive))
	require.False(t, IsoResolved.CanTransition(IsoActive))

	require.True(t, VaxPending.CanTransition(VaxDischarged))
	require.False(t, VaxAdministered.CanTransition(VaxPending))
}

// 未知状态（历史脏数据）视为终态，自动流程不碰
func TestTrackerStatusUnknownIsTerminal(t *testing.T) {
	require.True(t, AbtStatus("bogus").IsTerminal())
	require.False(t, AbtStatus("bogus").CanTransition(AbtDiscontinued))
}
