package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
)

var sessionListKB string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
	Long: `List, inspect, clear or delete stored conversation sessions.
Each knowledge base keeps its own sessions; asking without --new-session
resumes the most recent one.`,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear [session-id]",
	Short: "Empty a session's history",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClear,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

func init() {
	sessionListCmd.Flags().StringVar(&sessionListKB, "kb", "", "only sessions of this knowledge base")
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	sessions, err := sessionService.List(sessionListKB)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	cmd.Println("💬 会话列表:")
	cmd.Println()
	for _, s := range sessions {
		cmd.Printf("  %s\n", s.SessionID)
		cmd.Printf("     创建时间: %s\n", s.CreatedAt)
		cmd.Printf("     对话轮数: %d\n", s.Turns)
		cmd.Println()
	}
	if len(sessions) == 0 {
		cmd.Println("  (无)")
	}

	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Show(args[0])
	if err != nil {
		return fmt.Errorf("show session: %w", err)
	}

	cmd.Printf("📖 会话: %s\n", session.SessionID)
	cmd.Printf("   创建时间: %s\n", session.CreatedAt)
	cmd.Printf("   对话轮数: %d\n", session.Turns())
	cmd.Println(separatorLine)
	for _, msg := range session.History {
		switch msg.Role {
		case domain.RoleUser:
			cmd.Printf("\n问: %s\n", msg.Content)
		case domain.RoleAssistant:
			cmd.Printf("\n答: %s\n", msg.Content)
		}
	}

	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Clear(args[0]); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	cmd.Printf("✅ 已清空会话: %s\n", args[0])
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	if err := sessionService.Delete(args[0]); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	cmd.Printf("✅ 已删除会话: %s\n", args[0])
	return nil
}
