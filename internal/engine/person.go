package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/flockops/safeguard/internal/core"
	"github.com/flockops/safeguard/internal/logging"
	"github.com/flockops/safeguard/internal/ministrysafe"
)

// PersonResolver maps a vendor user id to a stable "pa<aliasId>" person
// token, lazily creating a local person when nobody matches.
type PersonResolver struct {
	vendor  VendorClient
	persons core.PersonDirectory
	logger  *logging.Logger
}

// NewPersonResolver creates a resolver.
func NewPersonResolver(vendor VendorClient, persons core.PersonDirectory, logger *logging.Logger) *PersonResolver {
	return &PersonResolver{vendor: vendor, persons: persons, logger: logger.WithComponent("person_resolver")}
}

// Resolve returns the person token for a vendor user. A reference already
// stored on the vendor side is returned verbatim; otherwise the vendor
// user's name and email are matched against local persons, creating one
// when nothing matches, and the resolved token is written back to the
// vendor so the next observation short-circuits.
func (r *PersonResolver) Resolve(ctx context.Context, vendorUserID int64) (string, error) {
	if vendorUserID == 0 {
		return "", core.ErrValidation("NO_USER_ID", "observation carries neither a person reference nor a vendor user id")
	}

	user, err := r.vendor.GetUser(ctx, vendorUserID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(user.ExternalID) != "" {
		return user.ExternalID, nil
	}

	person, err := r.match(ctx, user)
	if err != nil {
		return "", err
	}
	if person == nil {
		person, err = r.persons.CreatePerson(ctx, &core.Person{
			FirstName:        user.FirstName,
			LastName:         user.LastName,
			Email:            user.Email,
			RecordStatus:     "pending",
			ConnectionStatus: "prospect",
		})
		if err != nil {
			return "", err
		}
		r.logger.Info("created person for vendor user",
			"vendor_user_id", vendorUserID, "alias_id", person.AliasID)
	}

	ref := fmt.Sprintf("pa%d", person.AliasID)

	// Best effort; resolution already succeeded.
	if _, err := r.vendor.UpdateUser(ctx, vendorUserID, ministrysafe.UserParams{ExternalID: ref}); err != nil {
		r.logger.Warn("writing external reference back to vendor failed",
			"vendor_user_id", vendorUserID, "error", err)
	}
	return ref, nil
}

// match finds the local person for a vendor user. An exact email match
// wins; otherwise the first names of same-surname candidates are ranked
// fuzzily and the best hit is taken.
func (r *PersonResolver) match(ctx context.Context, user *ministrysafe.User) (*core.Person, error) {
	if strings.TrimSpace(user.LastName) == "" {
		return nil, nil
	}
	candidates, err := r.persons.CandidatesByLastName(ctx, user.LastName)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if email := strings.TrimSpace(strings.ToLower(user.Email)); email != "" {
		for _, c := range candidates {
			if strings.ToLower(c.Email) == email {
				return c, nil
			}
		}
	}

	if strings.TrimSpace(user.FirstName) == "" {
		return nil, nil
	}
	firstNames := make([]string, len(candidates))
	for i, c := range candidates {
		firstNames[i] = c.FirstName
	}
	matches := fuzzy.Find(user.FirstName, firstNames)
	if len(matches) == 0 {
		return nil, nil
	}
	return candidates[matches[0].Index], nil
}
