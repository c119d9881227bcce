package records

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// AdminAccount is one of the built-in administrative logins.
type AdminAccount struct {
	User     User
	Password string
}

// DefaultAdmins returns the three administrative accounts. Passwords come
// from SEED_<USERNAME>_PASSWORD; missing ones are generated.
func DefaultAdmins(getenv func(string) string) []AdminAccount {
	if getenv == nil {
		getenv = os.Getenv
	}
	base := []User{
		{Username: "Studentaffairs", Role: RoleStudentAffairs, Email: "studentaffairs@pdp.edu", FirstName: "Student", LastName: "Affairs Admin"},
		{Username: "Academicaffairs", Role: RoleAcademicAffairs, Email: "academicaffairs@pdp.edu", FirstName: "Academic", LastName: "Affairs Admin"},
		{Username: "admin", Role: RoleGrantCommittee, Email: "sponsors@pdp.edu", FirstName: "Grant", LastName: "Committee Admin"},
	}
	out := make([]AdminAccount, 0, len(base))
	for _, u := range base {
		pw := getenv("SEED_" + strings.ToUpper(u.Username) + "_PASSWORD")
		if pw == "" {
			pw = randomPassword()
		}
		out = append(out, AdminAccount{User: u, Password: pw})
	}
	return out
}

func randomPassword() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// SeedResult reports what SeedAdmins did for one account.
type SeedResult struct {
	Username string
	Created  bool
	Password string // set only when the account was created
}

// SeedAdmins creates the accounts that do not exist yet. Existing accounts
// are left untouched, so running it again is harmless.
func SeedAdmins(ctx context.Context, st Store, accounts []AdminAccount) ([]SeedResult, error) {
	out := make([]SeedResult, 0, len(accounts))
	for _, a := range accounts {
		_, created, err := st.EnsureUser(ctx, a.User, a.Password)
		if err != nil {
			return out, fmt.Errorf("seed %s: %w", a.User.Username, err)
		}
		res := SeedResult{Username: a.User.Username, Created: created}
		if created {
			res.Password = a.Password
		}
		out = append(out, res)
	}
	return out, nil
}
