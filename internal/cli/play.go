package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"en-words-service/internal/app"
	"en-words-service/internal/client"
	"en-words-service/internal/domain"
)

// NewPlayCmd runs an interactive quiz in the terminal against a running
// words API.
func NewPlayCmd(configPath, baseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Play a multiple-choice quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), resolveBaseURL(*configPath, *baseURL))
		},
	}
}

func runPlay(ctx context.Context, baseURL string) error {
	api := client.New(baseURL, zap.NewNop())
	in := bufio.NewScanner(os.Stdin)

	confirm := func(message string) bool {
		fmt.Printf("%s [y/N]: ", message)
		if !in.Scan() {
			return true
		}
		answer := strings.ToLower(strings.TrimSpace(in.Text()))
		return answer == "y" || answer == "yes"
	}

	session := app.NewSession(api, api, zap.NewNop(), app.WithConfirm(confirm))
	if err := session.LoadWords(ctx); err != nil {
		return fmt.Errorf("loading words from %s: %w", baseURL, err)
	}

	groups := session.Groups()
	fmt.Printf("Loaded %d words.\n", len(session.Words()))
	if len(groups) > 0 {
		fmt.Println("Groups:")
		fmt.Println("  0. all")
		for i, g := range groups {
			fmt.Printf("  %d. %s (%d words)\n", i+1, g.Name, g.Count)
		}
		fmt.Print("Pick a group number: ")
		if in.Scan() {
			if n, err := strconv.Atoi(strings.TrimSpace(in.Text())); err == nil && n >= 1 && n <= len(groups) {
				session.SelectGroup(groups[n-1].ID)
			}
		}
	}

	if err := session.Start(); err != nil {
		return err
	}
	if session.Status() == app.StatusCompleted {
		fmt.Println("No words in that group, nothing to quiz.")
		return nil
	}

	answeredCount := 0
	correct := 0
	for session.Status() == app.StatusInProgress {
		question := session.Question()
		if question == nil {
			break
		}
		progress, _ := session.Progress()
		fmt.Printf("\n[%d/%d] %s\n", progress.Current, progress.Total, question.Word.Term)
		for i, opt := range question.Options {
			fmt.Printf("  %d. %s\n", i+1, opt.Text)
		}
		fmt.Print("Answer (number, q to quit): ")
		if !in.Scan() {
			return session.Stop(ctx, false)
		}
		input := strings.TrimSpace(in.Text())
		if input == "q" {
			if err := session.Stop(ctx, true); err != nil {
				if errors.Is(err, domain.ErrFinalizeDeclined) {
					continue
				}
				return err
			}
			break
		}

		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(question.Options) {
			fmt.Println("Pick one of the shown numbers.")
			continue
		}
		session.Choose(question.Options[n-1])

		answered := session.Question()
		if answered != nil && answered.Status != domain.QuestionIdle {
			answeredCount++
			if answered.Status == domain.QuestionCorrect {
				correct++
				fmt.Println("Correct!")
			} else {
				for _, opt := range answered.Options {
					if opt.IsCorrect {
						fmt.Printf("Wrong. Correct answer: %s\n", opt.Text)
					}
				}
			}
		}

		if err := session.Next(ctx); err != nil {
			if errors.Is(err, domain.ErrFinalizeDeclined) {
				continue
			}
			return err
		}
	}

	fmt.Printf("\nDone. %d/%d correct, results submitted.\n", correct, answeredCount)
	return nil
}
