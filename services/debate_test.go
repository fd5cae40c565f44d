package services

import (
	"testing"
	"time"

	"geminijoust/models"
)

func newTestSession(turn string) *models.DebateSession {
	return &models.DebateSession{
		Participants: []string{"A", "B"},
		ParticipantInfo: map[string]models.ParticipantState{
			"A": {},
			"B": {},
		},
		Status: models.StatusActive,
		Turn:   turn,
	}
}

func TestValidateSubmissionWrongTurn(t *testing.T) {
	session := newTestSession("A")

	rej := validateSubmission(session, "B", 10)
	if rej == nil || rej.Reason != RejectNotYourTurn {
		t.Errorf("Expected not_your_turn rejection, got %v", rej)
	}
}

func TestValidateSubmissionNonParticipant(t *testing.T) {
	session := newTestSession("A")

	rej := validateSubmission(session, "C", 10)
	if rej == nil || rej.Reason != RejectNotParticipant {
		t.Errorf("Expected not_a_participant rejection, got %v", rej)
	}
}

func TestValidateSubmissionConcludedSession(t *testing.T) {
	session := newTestSession("A")
	session.Status = models.StatusConcludedOneExited

	rej := validateSubmission(session, "A", 10)
	if rej == nil || rej.Reason != RejectSessionClosed {
		t.Errorf("Expected session_concluded rejection, got %v", rej)
	}
}

func TestValidateSubmissionWordBoundaries(t *testing.T) {
	session := newTestSession("A")

	if rej := validateSubmission(session, "A", 0); rej == nil || rej.Reason != RejectEmptyMessage {
		t.Errorf("Expected empty_message for 0 words, got %v", rej)
	}
	if rej := validateSubmission(session, "A", models.MaxWordsPerReply+1); rej == nil || rej.Reason != RejectReplyTooLong {
		t.Errorf("Expected reply_too_long for 501 words, got %v", rej)
	}
	if rej := validateSubmission(session, "A", models.MaxWordsPerReply); rej != nil {
		t.Errorf("Expected 500 words accepted, got %v", rej)
	}
}

func TestValidateSubmissionBudgetExceeded(t *testing.T) {
	session := newTestSession("A")
	session.ParticipantInfo["A"] = models.ParticipantState{WordsUsed: 1501}

	rej := validateSubmission(session, "A", 500)
	if rej == nil || rej.Reason != RejectBudgetExceeded {
		t.Errorf("Expected word_budget_exceeded, got %v", rej)
	}

	// Exactly reaching the cap is allowed.
	session.ParticipantInfo["A"] = models.ParticipantState{WordsUsed: 1500}
	if rej := validateSubmission(session, "A", 500); rej != nil {
		t.Errorf("Expected exact cap submission accepted, got %v", rej)
	}
}

func TestValidateSubmissionIsIdempotent(t *testing.T) {
	session := newTestSession("A")
	before := session.ParticipantInfo["A"]

	first := validateSubmission(session, "B", 10)
	second := validateSubmission(session, "B", 10)
	if first == nil || second == nil || first.Reason != second.Reason {
		t.Errorf("Expected identical rejections, got %v and %v", first, second)
	}
	if session.ParticipantInfo["A"] != before || session.Turn != "A" || session.Status != models.StatusActive {
		t.Error("Rejection must not mutate the session")
	}
}

func TestApplySubmissionFlipsTurnAndCounts(t *testing.T) {
	session := newTestSession("A")
	now := time.Now()

	applySubmission(session, "A", 500, now)

	if got := session.ParticipantInfo["A"].WordsUsed; got != 500 {
		t.Errorf("Expected wordsUsed[A]=500, got %d", got)
	}
	if session.Turn != "B" {
		t.Errorf("Expected turn to flip to B, got %q", session.Turn)
	}
	if session.Status != models.StatusActive {
		t.Errorf("Expected session still active, got %q", session.Status)
	}
	if !session.UpdatedAt.Equal(now) {
		t.Error("Expected updatedAt to be touched")
	}
}

func TestApplySubmissionConcludesOnBothCapped(t *testing.T) {
	session := newTestSession("A")
	session.ParticipantInfo["A"] = models.ParticipantState{WordsUsed: 1500}
	session.ParticipantInfo["B"] = models.ParticipantState{WordsUsed: 2000}

	applySubmission(session, "A", 500, time.Now())

	if session.Status != models.StatusConcludedWordLimit {
		t.Errorf("Expected concluded_word_limit, got %q", session.Status)
	}
	// Turn still flips even when concluding.
	if session.Turn != "B" {
		t.Errorf("Expected turn record to flip to B, got %q", session.Turn)
	}
}

func TestApplySubmissionConcludesWhenOtherExitedAtCap(t *testing.T) {
	session := newTestSession("A")
	session.ParticipantInfo["A"] = models.ParticipantState{WordsUsed: 1500}
	session.ParticipantInfo["B"] = models.ParticipantState{WordsUsed: 100, HasExited: true}

	applySubmission(session, "A", 500, time.Now())

	if session.Status != models.StatusConcludedWordLimit {
		t.Errorf("Expected concluded_word_limit when sender caps and other exited, got %q", session.Status)
	}
}

func TestApplySubmissionUnderCapStaysActive(t *testing.T) {
	session := newTestSession("A")
	session.ParticipantInfo["B"] = models.ParticipantState{WordsUsed: 2000}

	applySubmission(session, "A", 100, time.Now())

	if session.Status != models.StatusActive {
		t.Errorf("Expected active while sender is under cap, got %q", session.Status)
	}
}

func TestApplyExitConcludesSession(t *testing.T) {
	session := newTestSession("B")

	applyExit(session, "B", time.Now())

	if !session.ParticipantInfo["B"].HasExited {
		t.Error("Expected B marked as exited")
	}
	if session.Status != models.StatusConcludedOneExited {
		t.Errorf("Expected concluded_one_exited, got %q", session.Status)
	}
	if session.Turn != "A" {
		t.Errorf("Expected turn handed to A, got %q", session.Turn)
	}
}

func TestApplyExitWhenOtherAtCap(t *testing.T) {
	session := newTestSession("B")
	session.ParticipantInfo["A"] = models.ParticipantState{WordsUsed: 2000}

	applyExit(session, "B", time.Now())

	if session.Status != models.StatusConcludedOneExitOneLim {
		t.Errorf("Expected concluded_one_exit_one_limit, got %q", session.Status)
	}
}

func TestApplyExitWhenBothExited(t *testing.T) {
	session := newTestSession("B")
	session.ParticipantInfo["A"] = models.ParticipantState{HasExited: true}

	applyExit(session, "B", time.Now())

	if session.Status != models.StatusConcludedBothExited {
		t.Errorf("Expected concluded_both_exited, got %q", session.Status)
	}
}

func TestValidateExitRejectsSecondExit(t *testing.T) {
	session := newTestSession("A")
	session.ParticipantInfo["B"] = models.ParticipantState{HasExited: true}

	rej := validateExit(session, "B")
	if rej == nil || rej.Reason != RejectAlreadyExited {
		t.Errorf("Expected already_exited rejection, got %v", rej)
	}
}

func TestTerminationConvergence(t *testing.T) {
	// Four maximal turns each: both reach 2000 and the session concludes.
	session := newTestSession("A")
	now := time.Now()
	for i := 0; i < 4; i++ {
		for _, user := range []string{"A", "B"} {
			if rej := validateSubmission(session, user, 500); rej != nil {
				t.Fatalf("Turn %d for %s unexpectedly rejected: %v", i, user, rej)
			}
			applySubmission(session, user, 500, now)
		}
	}

	if session.Status != models.StatusConcludedWordLimit {
		t.Fatalf("Expected concluded_word_limit after exhaustion, got %q", session.Status)
	}
	if rej := validateSubmission(session, session.Turn, 1); rej == nil || rej.Reason != RejectSessionClosed {
		t.Errorf("Expected no further submissions after conclusion, got %v", rej)
	}
}
