package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"go-file-share/internal/client"
	"go-file-share/internal/client/chatui"
	"go-file-share/internal/model"
	"go-file-share/pkg/config"
	"go-file-share/pkg/logger"

	errors "github.com/Laisky/errors/v2"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	username   string
	password   string
	fileType   string
	destDir    string
)

var rootCMD = &cobra.Command{
	Use:           "fileshare",
	Short:         "Client for the LAN file sharing server",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(configPath); err != nil {
			return err
		}
		if serverURL == "" {
			serverURL = config.GlobalConfig.Client.ServerURL
		}
		// 聊天窗口占用终端，只输出错误日志
		return logger.InitLogger("error", false)
	},
}

func newAPI() *client.APIClient {
	return client.NewAPIClient(serverURL, config.GlobalConfig.Client.RequestTimeout)
}

// login 需要身份的命令先登录，token 之后随请求发送
func login(ctx context.Context, api *client.APIClient) (*client.LoginResult, error) {
	if username == "" || password == "" {
		return nil, errors.New("--username and --password are required")
	}
	return api.Login(ctx, username, password)
}

var registerCMD = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" || password == "" {
			return errors.New("--username and --password are required")
		}
		id, err := newAPI().Register(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		fmt.Printf("User registered successfully. (user_id %d)\n", id)
		return nil
	},
}

var loginCMD = &cobra.Command{
	Use:   "login",
	Short: "Check credentials and print a token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := login(cmd.Context(), newAPI())
		if err != nil {
			return err
		}
		fmt.Printf("Login successful. user_id=%d\n", result.UserID)
		if result.Token != "" {
			fmt.Println(result.Token)
		}
		return nil
	},
}

var uploadCMD = &cobra.Command{
	Use:   "upload <path>",
	Short: "Share a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		api := newAPI()
		me, err := login(cmd.Context(), api)
		if err != nil {
			return err
		}
		id, err := api.RegisterFile(cmd.Context(), me.UserID, me.Username, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("File registered successfully. (file_id %d)\n", id)
		return nil
	},
}

var searchCMD = &cobra.Command{
	Use:   "search [query]",
	Short: "Search shared files by name and type",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		files, err := newAPI().Search(cmd.Context(), query, fileType)
		if err != nil {
			return err
		}
		printFiles(files)
		return nil
	},
}

var mineCMD = &cobra.Command{
	Use:   "mine",
	Short: "List files shared by --username",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return errors.New("--username is required")
		}
		files, err := newAPI().SharedBy(cmd.Context(), username)
		if err != nil {
			return err
		}
		printFiles(files)
		return nil
	},
}

var rateCMD = &cobra.Command{
	Use:   "rate <file_id> <1-5>",
	Short: "Rate a file, replacing an earlier rating",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Errorf("invalid file id %q", args[0])
		}
		score, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("invalid rating %q", args[1])
		}
		api := newAPI()
		me, err := login(cmd.Context(), api)
		if err != nil {
			return err
		}
		if err := api.Rate(cmd.Context(), uint(fileID), me.UserID, score); err != nil {
			return err
		}
		fmt.Println("Rating submitted successfully.")
		return nil
	},
}

var downloadCMD = &cobra.Command{
	Use:   "download <file_id>",
	Short: "Download a shared file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fileID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return errors.Errorf("invalid file id %q", args[0])
		}
		dir := destDir
		if dir == "" {
			dir = config.GlobalConfig.Client.DownloadDir
		}
		path, err := newAPI().Download(cmd.Context(), uint(fileID), dir)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", path)
		return nil
	},
}

var chatCMD = &cobra.Command{
	Use:   "chat",
	Short: "Log in and join the chat room",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		me, err := login(cmd.Context(), newAPI())
		if err != nil {
			return err
		}

		cfg := config.GlobalConfig.Client
		session, err := client.Connect(cmd.Context(), serverURL, me.Username, client.SessionOptions{
			PollInterval: cfg.PollInterval,
			HistoryLimit: cfg.HistoryLimit,
		})
		if err != nil {
			return err
		}

		p := tea.NewProgram(chatui.NewModel(session), tea.WithAltScreen())
		pumpCtx, stopPump := context.WithCancel(cmd.Context())
		go chatui.Pump(pumpCtx, session, p.Send)
		_, runErr := p.Run()
		stopPump()

		// 窗口异常退出时也要离开聊天室
		if err := session.Disconnect(); err != nil && !errors.Is(err, client.ErrNotConnected) {
			fmt.Fprintln(os.Stderr, "leave chat:", err)
		}
		if runErr != nil {
			return errors.Wrap(runErr, "run chat window")
		}
		return nil
	},
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func printFiles(files []model.FileView) {
	if len(files) == 0 {
		fmt.Println("No files found.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "Name", "Type", "Size", "Shared by", "Rating", "Votes")
	for _, f := range files {
		t.Row(
			strconv.FormatUint(uint64(f.ID), 10),
			f.Name,
			f.Type,
			strconv.FormatInt(f.Size, 10),
			f.SharedBy,
			strconv.FormatFloat(f.AverageRating, 'f', 2, 64),
			strconv.FormatInt(f.RatingCount, 10),
		)
	}
	fmt.Println(t.String())
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path, empty for defaults and FILESHARE_* env")
	rootCMD.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server url, defaults to client.server_url")
	rootCMD.PersistentFlags().StringVarP(&username, "username", "u", "", "account name")
	rootCMD.PersistentFlags().StringVarP(&password, "password", "p", "", "account password")

	searchCMD.Flags().StringVarP(&fileType, "type", "t", "", "exact file type, e.g. pdf")
	downloadCMD.Flags().StringVarP(&destDir, "dir", "d", "", "destination directory, defaults to client.download_dir")

	rootCMD.AddCommand(registerCMD, loginCMD, uploadCMD, searchCMD, mineCMD, rateCMD, downloadCMD, chatCMD)
}

func main() {
	if err := rootCMD.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
