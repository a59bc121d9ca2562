package main

import (
	"fmt"
	"os"

	"heyrag/internal/ui"
)

func main() {
	p := ui.NewProgram()
	finalModel, err := p.Run()
	if err != nil {
		fmt.Printf("Error: %v", err)
		os.Exit(1)
	}
	if m, ok := finalModel.(*ui.Model); ok {
		if m.Voice != nil {
			m.Voice.Cancel()
		}
		if m.Store != nil {
			_ = m.Store.Close()
		}
	}
}
