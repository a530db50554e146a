package bracket

import "codeduel/internal/tournament/model"

// Resolve decides one round. roster is consumed two at a time in order;
// standings maps player id to its round score. A player absent from standings
// counts as not submitted with zero tests passed.
//
//   - trailing odd player advances only with testsPassed > 0
//   - exactly one submitted: the submitter wins
//   - neither submitted: the first of the pair wins
//   - both submitted: more tests passed wins, ties go to the strictly earlier submission,
//     otherwise to the second player
func Resolve(roster []model.PlayerRef, standings map[string]model.Player) []model.PlayerRef {
	winners := make([]model.PlayerRef, 0, (len(roster)+1)/2)
	for i := 0; i < len(roster); i += 2 {
		a := roster[i]
		pa := standings[a.ID]
		if i+1 == len(roster) {
			if pa.TestsPassed > 0 {
				winners = append(winners, a)
			}
			break
		}
		b := roster[i+1]
		if firstWins(pa, standings[b.ID]) {
			winners = append(winners, a)
		} else {
			winners = append(winners, b)
		}
	}
	return winners
}

func firstWins(a, b model.Player) bool {
	switch {
	case a.HasSubmitted() && !b.HasSubmitted():
		return true
	case !a.HasSubmitted() && b.HasSubmitted():
		return false
	case !a.HasSubmitted() && !b.HasSubmitted():
		return true
	}
	if a.TestsPassed != b.TestsPassed {
		return a.TestsPassed > b.TestsPassed
	}
	return a.SubmissionTime.Before(*b.SubmissionTime)
}
