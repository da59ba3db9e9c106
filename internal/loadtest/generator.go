package loadtest

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/turnout/internal/domain/model"
)

func randomAfterparty() model.Afterparty {
	if rand.IntN(2) == 0 {
		return model.AfterpartyAttending
	}
	return model.AfterpartyNotAttending
}

// generateVoters creates n voters with unique identities. The first revoters
// of them cast a different ballot before their final one.
func generateVoters(n, revoters int) []Voter {
	voters := make([]Voter, n)
	for i := range voters {
		id := uuid.NewString()
		voters[i] = Voter{
			Name:       "voter-" + id[:8],
			Phone:      fmt.Sprintf("010-%04d-%04d", i/10000, i%10000),
			Companion:  rand.IntN(2) == 0,
			Afterparty: randomAfterparty(),
		}
		if i < revoters {
			voters[i].First = &Ballot{
				Companion:  !voters[i].Companion,
				Afterparty: randomAfterparty(),
			}
		}
	}
	return voters
}
