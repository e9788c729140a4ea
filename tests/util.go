package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/selah/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		Timezone:  "UTC",
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateReader creates an active reader named after uname.
func CreateReader(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@selah.test", "", []string{user.RoleReader}, true)
}

// CreateTeacher creates an active teacher named after uname.
func CreateTeacher(t *testing.T, repo user.Repository, uname string) user.User {
	t.Helper()
	return CreateUser(t, repo, uname, uname, uname+"@selah.test", "", []string{user.RoleTeacher}, true)
}
