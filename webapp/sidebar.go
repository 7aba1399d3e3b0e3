package webapp

import (
	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

type navItem struct {
	icon, label, href string
}

var sidebarItems = []navItem{
	{"📄", "Convert", "/"},
	{"🖼️", "Conversions", "/conversions"},
	{"⚙️", "Jobs", "/jobs"},
	{"🧹", "Cleanup", "/cleanup"},
	{"ℹ️", "About", "/about"},
}

// Sidebar is the left sidebar menu component
type Sidebar struct {
	app.Compo
	isOpen bool
}

// OnMount is called when the component is mounted
func (s *Sidebar) OnMount(ctx app.Context) {
	s.isOpen = s.getSidebarState(ctx)
}

// OnNav is called when navigation occurs
func (s *Sidebar) OnNav(ctx app.Context) {
	s.isOpen = s.getSidebarState(ctx)
}

// Render renders the sidebar
func (s *Sidebar) Render() app.UI {
	class := "sidebar"
	if s.isOpen {
		class += " sidebar-open"
	}

	currentPath := app.Window().URL().Path
	items := make([]app.UI, 0, len(sidebarItems))
	for _, item := range sidebarItems {
		items = append(items, s.renderNavItem(item, currentPath))
	}

	return app.Aside().
		Class(class).
		Body(
			app.Div().Class("sidebar-header").Body(
				app.H2().Text("Menu"),
			),
			app.Nav().Class("sidebar-nav").Body(items...),
		)
}

func (s *Sidebar) renderNavItem(item navItem, currentPath string) app.UI {
	class := "sidebar-item"
	if currentPath == item.href {
		class += " sidebar-item-active"
	}

	return app.A().
		Href(item.href).
		Class(class).
		Body(
			app.Span().Class("sidebar-icon").Text(item.icon),
			app.Span().Class("sidebar-label").Text(item.label),
		)
}

// getSidebarState retrieves the sidebar open/closed state from local storage
func (s *Sidebar) getSidebarState(ctx app.Context) bool {
	var isOpen bool
	ctx.LocalStorage().Get("sidebar-open", &isOpen)
	return isOpen
}
