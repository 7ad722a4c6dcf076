// issue-token mints a service JWT for scripted access to the API, e.g. a
// cron job pulling /reports/export-excel. The token carries a user id and
// role and is validated by the Bearer auth middleware; lifespan follows
// TOKEN_HOUR_LIFESPAN, secret follows API_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/utils"
)

func main() {
	userId := flag.Int("user-id", 0, "user id to embed in the token")
	role := flag.String("role", string(models.UserRoleOwner), "role claim: A (admin), O (owner) or C (clerk)")
	flag.Parse()

	if *userId <= 0 {
		fmt.Fprintln(os.Stderr, "--user-id is required and must be positive")
		os.Exit(1)
	}
	if !models.UserRole(*role).Valid() {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	token, err := utils.JwtGenerate(*userId, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
