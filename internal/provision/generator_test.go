package provision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsername(t *testing.T) {
	assert.Equal(t, "user01", Username(1))
	assert.Equal(t, "user09", Username(9))
	assert.Equal(t, "user42", Username(42))
	assert.Equal(t, "user100", Username(100))
}

func TestGenerator_SameSeedSameNames(t *testing.T) {
	a := NewGenerator(7, "Pusilkom123", "example.com")
	b := NewGenerator(7, "Pusilkom123", "example.com")
	for seq := 1; seq <= 5; seq++ {
		ua, ub := a.User(seq), b.User(seq)
		assert.Equal(t, ua, ub)
		assert.NotEmpty(t, ua.FirstName)
		assert.NotEmpty(t, ua.LastName)
	}
}

func TestGenerator_UserFields(t *testing.T) {
	u := NewGenerator(1, "Pusilkom123", "acme.test").User(3)
	assert.Equal(t, 3, u.Seq)
	assert.Equal(t, "user03", u.Username)
	assert.Equal(t, "user03@acme.test", u.Email)
	assert.Equal(t, "Pusilkom123", u.Password)

	rep := u.Representation()
	assert.True(t, rep.Enabled)
	assert.True(t, rep.EmailVerified)
	require.Len(t, rep.Credentials, 1)
	assert.Equal(t, "password", rep.Credentials[0].Type)
	assert.Equal(t, "Pusilkom123", rep.Credentials[0].Value)
	assert.False(t, rep.Credentials[0].Temporary)
}

func TestBatches_PartitionWithoutGapsOrOverlaps(t *testing.T) {
	for _, tc := range []struct{ total, size int }{
		{1, 1}, {3, 2}, {20, 10}, {21, 10}, {5, 50}, {7, 1},
	} {
		batches := Batches(tc.total, tc.size)
		next := 1
		for _, b := range batches {
			require.NotEmpty(t, b)
			assert.LessOrEqual(t, len(b), tc.size)
			for _, seq := range b {
				assert.Equal(t, next, seq, "total=%d size=%d", tc.total, tc.size)
				next++
			}
		}
		assert.Equal(t, tc.total+1, next)
	}

	assert.Equal(t, [][]int{{1, 2}, {3}}, Batches(3, 2))
}

func TestBatches_NonPositive(t *testing.T) {
	assert.Nil(t, Batches(0, 10))
	assert.Nil(t, Batches(10, 0))
	assert.Nil(t, Batches(-1, -1))
}

func TestPickPause(t *testing.T) {
	lowest := func(int) int { return 0 }
	highest := func(n int) int { return n - 1 }

	assert.Equal(t, 5*time.Second, pickPause(5*time.Second, 10*time.Second, lowest))
	assert.Equal(t, 10*time.Second, pickPause(5*time.Second, 10*time.Second, highest))
	assert.Equal(t, time.Duration(0), pickPause(0, 0, highest))
	// límites fraccionarios: solo segundos enteros dentro del rango
	assert.Equal(t, 2*time.Second, pickPause(1500*time.Millisecond, 2500*time.Millisecond, highest))
	assert.Equal(t, 200*time.Millisecond, pickPause(200*time.Millisecond, 800*time.Millisecond, highest))

	var sizes []int
	pickPause(5*time.Second, 10*time.Second, func(n int) int { sizes = append(sizes, n); return 0 })
	assert.Equal(t, []int{6}, sizes)
}

func TestUserResult_Status(t *testing.T) {
	assert.Equal(t, "SUCCESS", UserResult{Outcome: OutcomeSuccess}.Status())
	assert.Equal(t, "FAILED: User exists with same username",
		UserResult{Outcome: OutcomeFailed, Reason: "User exists with same username"}.Status())
	assert.Equal(t, "SKIPPED: conflict", UserResult{Outcome: OutcomeSkipped, Reason: "conflict"}.Status())
}

func TestRunResult_Failed(t *testing.T) {
	ok := RunResult{
		Realm:  StepResult{Name: StepRealm, Status: StepExists},
		Client: StepResult{Name: StepClient, Status: StepCreated},
		Purge:  PurgeResult{Step: StepResult{Name: StepPurge, Status: StepDisabled}},
		Seed:   SeedResult{Step: StepResult{Name: StepSeed, Status: StepDone}, Created: 2, Skipped: 1},
	}
	assert.False(t, ok.Failed())
	assert.True(t, ok.Summary().Success)

	withFailedUser := ok
	withFailedUser.Seed.Failed = 1
	assert.True(t, withFailedUser.Failed())

	withDeleteError := ok
	withDeleteError.Purge.Errors = 1
	assert.True(t, withDeleteError.Failed())

	aborted := ok
	aborted.Client.Status = StepAborted
	assert.True(t, aborted.Failed())
}
