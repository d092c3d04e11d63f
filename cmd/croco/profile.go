package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhruvdaberao/CROCO/internal/memory"
	"github.com/dhruvdaberao/CROCO/internal/store"
)

// profileCmd inspects and manages the synthesized user profile
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect or reset the remembered user profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile as JSON",
	RunE:  runProfileShow,
}

var profileResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget everything: profile, name, and avatar",
	RunE:  runProfileReset,
}

// avatarCmd sets the profile picture from an image file
var avatarCmd = &cobra.Command{
	Use:   "avatar [image-file]",
	Short: "Set the profile picture from an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAvatarSet,
}

var historyLimit int

// historyCmd lists recorded conversation turns
var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "List recorded sessions, or the turns of one session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileResetCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum entries to list")
}

// openStore opens persistence without the LLM stack. Profile and
// history commands work offline and without an API key, so they skip
// buildApp on purpose.
func openStore() (*store.Store, error) {
	st, err := store.New(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	raw, ok, err := st.GetSetting(store.KeyProfile)
	if err != nil {
		return err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		fmt.Println("No profile stored yet.")
		return nil
	}

	profile, err := memory.Decode(raw)
	if err != nil {
		return fmt.Errorf("stored profile is unreadable: %w", err)
	}
	encoded, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

func runProfileReset(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	for _, key := range []string{store.KeyProfile, store.KeyUserName, store.KeyUserAvatar} {
		if err := st.DeleteSetting(key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	fmt.Println("Profile, name, and avatar cleared. Croco will reintroduce itself next time.")
	return nil
}

func runAvatarSet(cmd *cobra.Command, args []string) error {
	dataURL, err := fileToDataURL(args[0])
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.PutSetting(store.KeyUserAvatar, dataURL); err != nil {
		return fmt.Errorf("store avatar: %w", err)
	}
	fmt.Println("Avatar updated.")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if len(args) == 0 {
		sessions, err := st.Sessions(historyLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("No recorded sessions.")
			return nil
		}
		for _, id := range sessions {
			fmt.Println(id)
		}
		return nil
	}

	turns, err := st.SessionHistory(args[0], historyLimit)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		fmt.Println("No turns recorded for that session.")
		return nil
	}
	for _, turn := range turns {
		marker := ""
		if turn.HasImage {
			marker = " [image]"
		}
		fmt.Printf("%3d %-9s %s%s\n", turn.TurnNumber, turn.Speaker, turn.Text, marker)
	}
	return nil
}
