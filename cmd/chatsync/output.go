package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

var (
	titleColor  = color.New(color.FgMagenta, color.Bold)
	folderColor = color.New(color.FgCyan)
	convColor   = color.New(color.FgWhite)
	statusColor = color.New(color.FgHiBlack)
	okColor     = color.New(color.FgGreen)
	errColor    = color.New(color.FgRed)
)

func printStatus(format string, args ...any) {
	statusColor.Printf(format+"\n", args...)
}

func printOK(format string, args ...any) {
	okColor.Printf(format+"\n", args...)
}

func printErr(format string, args ...any) {
	errColor.Printf(format+"\n", args...)
}

// printDocument renders the folder tree of doc, uncategorized
// conversations last. Deleted conversations are hidden.
func printDocument(doc *model.UserDocument) {
	active := doc.ActiveConversations()
	titleColor.Printf("%d conversations, %d folders\n", len(active), len(doc.Folders))

	byFolder := make(map[string][]model.Conversation)
	var loose []model.Conversation
	for _, c := range active {
		if c.FolderID == nil || doc.FindFolder(*c.FolderID) == nil {
			loose = append(loose, c)
			continue
		}
		byFolder[*c.FolderID] = append(byFolder[*c.FolderID], c)
	}

	folders := append([]model.Folder(nil), doc.Folders...)
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	for _, f := range folders {
		folderColor.Printf("%s/ (%s)\n", f.Name, f.ID)
		for _, c := range byFolder[f.ID] {
			printConversation("  ", c)
		}
	}
	for _, c := range loose {
		printConversation("", c)
	}
	fmt.Println()
}

func printConversation(indent string, c model.Conversation) {
	convColor.Printf("%s- %s", indent, c.Title)
	statusColor.Printf(" (%s, %d messages", c.ID, len(c.Messages))
	if c.SharedFrom != "" {
		statusColor.Printf(", from %s", c.SharedFrom)
	}
	statusColor.Println(")")
}
