package domain

import "testing"

func TestCanTransition_TransferStateMachine(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{StatusPendingAdminApproval, StatusPendingReceiverConfirm, true},
		{StatusPendingAdminApproval, StatusRejected, true},
		{StatusPendingAdminApproval, StatusCancelled, true},
		{StatusPendingAdminApproval, StatusCompleted, false},
		{StatusPendingReceiverConfirm, StatusCompleted, true},
		{StatusPendingReceiverConfirm, StatusRejected, true},
		{StatusPendingReceiverConfirm, StatusCancelled, false},
		{StatusPendingReceiverConfirm, StatusPendingAdminApproval, false},
		{StatusCompleted, StatusRejected, false},
		{StatusRejected, StatusPendingAdminApproval, false},
		{StatusCancelled, StatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s)=%t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRewardForCategory(t *testing.T) {
	cases := []struct {
		category GuestCategory
		amount   Amount
		known    bool
	}{
		{CategoryListedChairman, 1000, true},
		{CategoryMinistryLeader, 2000, true},
		{CategoryFinExec, 500, true},
		{CategoryOther, 0, true},
		{"celebrity", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		amount, known := RewardForCategory(tc.category)
		if amount != tc.amount || known != tc.known {
			t.Errorf("RewardForCategory(%q)=(%d,%t), want (%d,%t)", tc.category, amount, known, tc.amount, tc.known)
		}
	}
}

func TestAccountAvailable(t *testing.T) {
	acct := Account{Balance: 1000, FrozenAmount: 800}
	if acct.Available() != 200 {
		t.Fatalf("expected available 200, got %d", acct.Available())
	}
}

func TestGuestSourceAccessors(t *testing.T) {
	meeting := FromMeetingGuest(MeetingGuestSource{Name: "Chen Wei", Organization: "Acme", Category: CategoryFinExec})
	if meeting.GuestName() != "Chen Wei" || meeting.Organization() != "Acme" || meeting.Category() != CategoryFinExec {
		t.Fatal("meeting source accessors returned wrong values")
	}
	visit := FromOnsiteVisit(OnsiteVisitSource{Name: "Li Na", Organization: "Finance Dept", Category: CategoryOther})
	if visit.GuestName() != "Li Na" || visit.Organization() != "Finance Dept" || visit.Category() != CategoryOther {
		t.Fatal("visit source accessors returned wrong values")
	}
}
