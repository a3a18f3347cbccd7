package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"gastos-cloud/internal/config"
	"gastos-cloud/internal/keyvalue"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	identityClient := remote.NewHTTPIdentityClient(cfg.IdentityBaseURL, cfg.IdentityAPIKey, logger)
	recordClient := remote.NewHTTPRecordClient(cfg.DatabaseURL, logger)
	blobClient := remote.NewHTTPBlobClient(cfg.StorageURL, logger)
	storage := keyvalue.NewFileStore(cfg.SessionFile)

	sessionSvc := service.NewSessionService(logger, identityClient, storage)
	expenseSvc := service.NewExpenseService(logger, sessionSvc, recordClient, blobClient)

	if restored, err := sessionSvc.Restore(ctx); err == nil && restored {
		cred, _ := sessionSvc.Credential()
		fmt.Println("sesión restaurada:", cred.Email)
	}

	fmt.Println("comandos: login | signup | list | add | total | delete | logout | exit")

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		switch strings.TrimSpace(line) {
		case "login", "signup":
			email := prompt(reader, "email: ")
			password := prompt(reader, "password: ")
			var authErr error
			if strings.TrimSpace(line) == "login" {
				_, authErr = sessionSvc.Login(ctx, email, password)
			} else {
				_, authErr = sessionSvc.Signup(ctx, email, password)
			}
			if authErr != nil {
				var identityErr *remote.IdentityError
				if errors.As(authErr, &identityErr) {
					fmt.Println(identityErr.UserMessage())
				} else {
					fmt.Println("error:", authErr)
				}
				continue
			}
			fmt.Println("sesión iniciada")
		case "list":
			expenses, err := expenseSvc.FetchAll(ctx)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, e := range expenses {
				fmt.Printf("%s  %-24s %8.2f  %s\n", e.Dtg.Format("2006-01-02"), e.Title, e.Value, e.ID)
			}
		case "add":
			title := prompt(reader, "título: ")
			value, err := strconv.ParseFloat(prompt(reader, "valor: "), 64)
			if err != nil {
				fmt.Println("valor inválido")
				continue
			}
			expense, err := expenseSvc.Add(ctx, title, value, time.Now().UTC(), "")
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("agregado:", expense.ID)
		case "total":
			fmt.Printf("total: %.2f\n", expenseSvc.Total())
		case "delete":
			id := prompt(reader, "id: ")
			if err := expenseSvc.Delete(ctx, id); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("borrado")
		case "logout":
			sessionSvc.Logout(ctx)
			fmt.Println("sesión cerrada")
		case "exit", "quit":
			return
		default:
			fmt.Println("comando desconocido")
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
