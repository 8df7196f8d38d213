package repository

import (
	"sort"

	"go-inventory-hold/internal/model"

	"github.com/google/uuid"
)

func sortOldestFirst(holds []model.Reservation) {
	sort.SliceStable(holds, func(i, j int) bool {
		if holds[i].CreatedAt.Equal(holds[j].CreatedAt) {
			return holds[i].ID.String() < holds[j].ID.String()
		}
		return holds[i].CreatedAt.Before(holds[j].CreatedAt)
	})
}

// splitHold cuts hold into an order part of qty units owned by req.ToHolderID
// and a remainder left with the original holder. Both keep the expiry, session
// and creation time of the source hold.
func splitHold(hold model.Reservation, qty int, req HoldTransfer) (model.Reservation, model.Reservation) {
	orderPart := hold
	orderPart.ID = uuid.New()
	orderPart.Quantity = qty
	orderPart.HolderID = req.ToHolderID
	orderPart.UpdatedAt = req.Now

	rest := hold
	rest.ID = uuid.New()
	rest.Quantity = hold.Quantity - qty
	rest.UpdatedAt = req.Now
	return orderPart, rest
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
