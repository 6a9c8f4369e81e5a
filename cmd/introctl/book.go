package main

import (
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Trigger a booking run on a running intro service",
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			initiators, _ := cmd.Flags().GetStringSlice("initiator")
			meetings, _ := cmd.Flags().GetInt("meetings")
			startDate, _ := cmd.Flags().GetString("start-date")
			return runBook(apiFlag, modeFlag, channel, initiators, meetings, startDate, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringP("channel", "c", "", "notification channel ID (required)")
	cmd.Flags().StringSliceP("initiator", "i", nil, "initiator email, repeatable (required)")
	cmd.Flags().IntP("meetings", "n", 1, "meetings per initiator")
	cmd.Flags().String("start-date", "", "earliest meeting date, YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("channel")
	_ = cmd.MarkFlagRequired("initiator")
	return cmd
}

func runBook(api, mode, channel string, initiators []string, meetings int, startDate string, out io.Writer) error {
	payload := map[string]interface{}{
		"mode":                 mode,
		"channel":              channel,
		"initiators":           initiators,
		"meetingsPerInitiator": meetings,
	}
	if startDate != "" {
		payload["startDate"] = startDate
	}

	var accepted struct {
		RunID  string `json:"runId"`
		Status string `json:"status"`
	}
	resp, err := resty.New().SetBaseURL(api).R().
		SetBody(payload).
		SetResult(&accepted).
		Post("/api/bookings")
	if err != nil {
		return errors.Wrap(err, "post booking")
	}
	if resp.IsError() {
		return errors.Errorf("service returned %s: %s", resp.Status(), resp.String())
	}

	fmt.Fprintf(out, "run %s %s\n", accepted.RunID, accepted.Status)
	return nil
}
