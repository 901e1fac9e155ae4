package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"sitter-link/internal/airtable"
	"sitter-link/internal/responder"
)

// cliConfig es el subconjunto de configuración que necesita la consola:
// solo el almacén externo, sin base de datos.
type cliConfig struct {
	AirtableAPIKey        string `env:"AIRTABLE_API_KEY,required,notEmpty"`
	AirtableBaseID        string `env:"AIRTABLE_BASE_ID,required,notEmpty"`
	AirtableBaseURL       string `env:"AIRTABLE_BASE_URL" envDefault:"https://api.airtable.com/v0"`
	AirtableRequestsTable string `env:"AIRTABLE_REQUESTS_TABLE" envDefault:"Babysitter Requests"`
	AirtableReadRetries   int    `env:"AIRTABLE_READ_RETRIES" envDefault:"1"`
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	store, err := airtable.NewClient(airtable.Options{
		BaseURL:       cfg.AirtableBaseURL,
		BaseID:        cfg.AirtableBaseID,
		APIKey:        cfg.AirtableAPIKey,
		RequestsTable: cfg.AirtableRequestsTable,
		ReadRetries:   cfg.AirtableReadRetries,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}

	requestID := ""
	if len(os.Args) > 1 {
		requestID = strings.TrimSpace(os.Args[1])
	}
	for requestID == "" {
		requestID = prompt(reader, "ID de la solicitud: ")
	}

	flow := responder.NewFlow(logger, store, requestID, nil)
	defer flow.Close()

	fmt.Println("===== Responder solicitud =====")
	if err := verifyLoop(ctx, reader, flow); err != nil {
		log.Fatal(err)
	}
	printDetails(flow.View())

	for {
		answer := strings.ToLower(prompt(reader, "¿Puedes cuidar ese día? [yes/no]: "))
		if answer != "yes" && answer != "no" {
			fmt.Println("Responde yes o no.")
			continue
		}
		comments := prompt(reader, "Comentarios (opcional): ")

		submitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := flow.Submit(submitCtx, answer, comments)
		cancel()
		if err != nil {
			fmt.Println(responder.NoticeFor(err).Title)
			if errors.Is(err, responder.ErrSubmitFailed) {
				continue
			}
			os.Exit(1)
		}
		fmt.Println(responder.NoticeFor(nil).Title)
		if p := flow.View().Parent; p != nil {
			fmt.Printf("%s %s recibirá tu respuesta.\n", p.FirstName, p.LastName)
		}
		return
	}
}

// verifyLoop pide el móvil hasta que la solicitud se encuentra.
func verifyLoop(ctx context.Context, reader *bufio.Reader, flow *responder.Flow) error {
	for attempt := 1; ; attempt++ {
		mobile := prompt(reader, "Tu número de móvil: ")
		if mobile == "" {
			continue
		}
		verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := flow.Verify(verifyCtx, mobile)
		cancel()
		if err == nil {
			return nil
		}
		fmt.Println(responder.NoticeFor(err).Title)
		if attempt >= 5 {
			return fmt.Errorf("verification failed after %d attempts: %w", attempt, err)
		}
	}
}

func printDetails(v responder.View) {
	fmt.Println()
	fmt.Println(v.Welcome)
	if v.Sender != "" {
		fmt.Println(v.Sender)
	}
	fmt.Printf("Fecha:   %s\n", v.Date)
	fmt.Printf("Horario: %s\n", v.TimeRange)
	if v.Notes != "" {
		fmt.Printf("Notas:   %s\n", v.Notes)
	}
	fmt.Println()
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
