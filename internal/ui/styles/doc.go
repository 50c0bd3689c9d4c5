// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and lipgloss styles of the campusbot TUI.

All colors are lipgloss AdaptiveColor values. NewTheme resolves the
background mode once (explicitly, or by asking the terminal through
termenv) and tells lipgloss which half of each pair to use.

# Color System (colors.go)

  - Purple: assistant turns and the active screen tab
  - Cyan: brand, user turns and suggestion chips
  - Emerald: success toasts and the "like" hint
  - Amber: warnings and the input lockout
  - Rose: errors

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	fmt.Println(theme.HeaderTitle.Render("DTU Assistant"))
*/
package styles
