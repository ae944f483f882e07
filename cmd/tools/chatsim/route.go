package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/intent"
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/keywords"
	"github.com/zhouzirui/studio-concierge/backend/internal/analysis/routing"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/chat"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
)

func init() {
	cmd := &cobra.Command{
		Use:   "route <utterance>",
		Short: "Show persona scores, inferred context and reply family for one utterance",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRoute,
	}

	rootCmd.AddCommand(cmd)
}

func runRoute(cmd *cobra.Command, args []string) {
	store, err := loadPersonas()
	if err != nil {
		exitErr("load personas", err)
	}

	utterance := strings.Join(args, " ")
	text := keywords.Normalize(utterance)
	out := cmd.OutOrStdout()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERSONA\tNAME\tSCORE")
	for _, p := range store.List() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, p.Name, routing.Score(p, text))
	}
	_ = w.Flush()

	decision := routing.Route(store.List(), utterance)
	convo := intent.Update(chat.Context{}, utterance)
	family := reply.New(newPicker()).Classify(utterance, decision.Persona, convo)

	fmt.Fprintf(out, "\nselected: %s (score %d)\n", decision.Persona.ID, decision.Score)
	fmt.Fprintf(out, "context:  topics=%v project=%q budget=%q timeline=%q\n",
		convo.MentionedTopics, convo.ProjectType, convo.Budget, convo.Timeline)
	fmt.Fprintf(out, "family:   %s\n", family)
}
