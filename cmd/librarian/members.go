package main

import (
	"github.com/spf13/cobra"

	"librarian/internal/config"
	"librarian/internal/membership"
)

func newMemberCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Register and show members",
	}
	cmd.AddCommand(newMemberAddCmd(cfg), newMemberShowCmd(cfg))
	return cmd
}

func newMemberAddCmd(cfg *config.Config) *cobra.Command {
	var reg membership.Registration

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member and print the allocated code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := client(cfg).RegisterMember(cmd.Context(), reg)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), member)
		},
	}

	cmd.Flags().StringVar(&reg.Name, "name", "", "full name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&reg.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&reg.MemberType, "type", "student", "student|teacher|staff|foreigner")
	cmd.Flags().StringVar(&reg.Gender, "gender", "", "male|female|other")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("gender")

	return cmd
}

func newMemberShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a member by id, code or number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			member, err := client(cfg).GetMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), member)
		},
	}
}
