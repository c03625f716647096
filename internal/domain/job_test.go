package domain

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusCompleted, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusPending, JobStatusPending, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatus("bogus"), JobStatusCompleted, false},
		{JobStatusPending, JobStatus("bogus"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusUpdateNormalizeDropsURLsUnlessCompleted(t *testing.T) {
	u := StatusUpdate{Status: JobStatusProcessing, OutputURL: "https://x/v.mp4", ThumbnailURL: "https://x/t.jpg"}.Normalize()
	if u.OutputURL != "" || u.ThumbnailURL != "" {
		t.Fatalf("urls kept for processing status: %+v", u)
	}
	c := StatusUpdate{Status: JobStatusCompleted, OutputURL: "https://x/v.mp4"}.Normalize()
	if c.OutputURL != "https://x/v.mp4" {
		t.Fatalf("OutputURL = %q, want kept", c.OutputURL)
	}
}

func TestValidDuration(t *testing.T) {
	for _, d := range []int{4, 8, 12} {
		if !ValidDuration(d) {
			t.Errorf("ValidDuration(%d) = false", d)
		}
	}
	for _, d := range []int{0, 5, 10, 30} {
		if ValidDuration(d) {
			t.Errorf("ValidDuration(%d) = true", d)
		}
	}
}
