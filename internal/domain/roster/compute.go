package roster

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/moonlitpsych/moonlit-scheduler/internal/domain/directory"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

type pair struct{ provider, payer uuid.UUID }

// ComputeBookable derives the bookable provider/payer pairs on asOf.
//
// A pair needs a bookable provider, a payer accepting on asOf and an
// in_network contract covering asOf. A supervised contract also needs an
// active supervision covering asOf whose attending holds a direct contract
// with the same payer; the first such attending by id is recorded in Via.
// When a provider has both a direct and a supervised contract with a payer,
// the direct one wins.
func ComputeBookable(in Inputs, asOf date.Date) []Bookable {
	bookableProvider := make(map[uuid.UUID]bool, len(in.Providers))
	for _, p := range in.Providers {
		if p.IsBookable {
			bookableProvider[p.ID] = true
		}
	}
	acceptingPayer := make(map[uuid.UUID]bool, len(in.Payers))
	for _, p := range in.Payers {
		if p.AcceptingOn(asOf) {
			acceptingPayer[p.ID] = true
		}
	}

	direct := make(map[pair]bool)
	supervised := make(map[pair]bool)
	for _, n := range in.Networks {
		if !n.CoversOn(asOf) || !acceptingPayer[n.PayerID] {
			continue
		}
		k := pair{n.ProviderID, n.PayerID}
		if n.BillingMode == directory.BillingSupervised {
			supervised[k] = true
		} else {
			direct[k] = true
		}
	}

	attendings := make(map[uuid.UUID][]uuid.UUID)
	for _, s := range in.Supervisions {
		if s.Covers(asOf) {
			attendings[s.ResidentProviderID] = append(attendings[s.ResidentProviderID], s.AttendingProviderID)
		}
	}
	for _, ids := range attendings {
		sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	}

	var out []Bookable
	for k := range direct {
		if bookableProvider[k.provider] {
			out = append(out, Bookable{ProviderID: k.provider, PayerID: k.payer, BillingMode: directory.BillingDirect, AsOf: asOf})
		}
	}
	for k := range supervised {
		if direct[k] || !bookableProvider[k.provider] {
			continue
		}
		for _, att := range attendings[k.provider] {
			if direct[pair{att, k.payer}] {
				via := att
				out = append(out, Bookable{ProviderID: k.provider, PayerID: k.payer, BillingMode: directory.BillingSupervised, Via: &via, AsOf: asOf})
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].PayerID[:], out[j].PayerID[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].ProviderID[:], out[j].ProviderID[:]) < 0
	})
	if out == nil {
		out = []Bookable{}
	}
	return out
}
