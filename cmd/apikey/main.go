// Command apikey prints an API key for the user directory JSON API.
//
//	JWT_API_SECRET=... apikey -role service -ttl 720h
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/nourabuild/user-directory/internal/services/jwt"
)

func main() {
	role := flag.String("role", string(jwt.RoleAnon), "key role: anon or service")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "key lifetime")
	flag.Parse()

	key, err := jwt.NewTokenService().Issue(jwt.Role(*role), *ttl)
	if err != nil {
		log.Fatalf("issue api key: %v", err)
	}
	fmt.Println(key)
}
