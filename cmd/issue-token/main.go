// Command issue-token выпускает JWT для фронтенда бота или оператора.
//
//	CONFIG_PATH=config/local.yaml issue-token -subject telegram-frontend -role bot
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/jwt"
)

func main() {
	subject := flag.String("subject", "telegram-frontend", "token subject")
	role := flag.String("role", jwt.RoleBot, "token role: bot or admin")
	flag.Parse()

	if *role != jwt.RoleBot && *role != jwt.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg := config.MustLoad()
	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(*subject, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
