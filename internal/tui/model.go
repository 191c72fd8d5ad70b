package tui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/prismwalls/internal/favorites"
	"github.com/glabrego/prismwalls/internal/feed"
	"github.com/glabrego/prismwalls/internal/querycache"
	"github.com/glabrego/prismwalls/internal/recent"
	"github.com/glabrego/prismwalls/internal/search"
	"github.com/glabrego/prismwalls/internal/settings"
	"github.com/glabrego/prismwalls/internal/tui/actions"
	"github.com/glabrego/prismwalls/internal/tui/platform"
	"github.com/glabrego/prismwalls/internal/tui/state"
	tuitheme "github.com/glabrego/prismwalls/internal/tui/theme"
	"github.com/glabrego/prismwalls/internal/tui/view"
	"github.com/glabrego/prismwalls/internal/wallpaper"
)

// Service is what the terminal client needs from the app. *app.Service
// satisfies it.
type Service interface {
	actions.Service
	ClearSearch()
	Favorites() *favorites.Store
	Settings() *settings.Store
	Recent() *recent.Store
}

const (
	tabCurated    = "Curated"
	tabTrending   = "Trending"
	tabSearch     = "Search"
	tabCategories = "Categories"
	tabFavorites  = "Favorites"
	tabSettings   = "Settings"

	// Rows from the end of the grid at which the next page is requested.
	endReachedRows = 1
	statusTTL      = 4 * time.Second
	gridColumnPx   = 174
)

var tabs = []view.Tab{
	{Key: "1", Label: tabCurated},
	{Key: "2", Label: tabTrending},
	{Key: "3", Label: tabSearch},
	{Key: "4", Label: tabCategories},
	{Key: "5", Label: tabFavorites},
	{Key: "6", Label: tabSettings},
}

var tabOperation = map[string]querycache.Operation{
	tabCurated:    querycache.OpCurated,
	tabTrending:   querycache.OpTrending,
	tabSearch:     querycache.OpSearch,
	tabCategories: querycache.OpCategory,
}

// searchEvent is emitted by the debounced search input from its timer
// goroutine.
type searchEvent struct {
	query string
	clear bool
}

type searchEventMsg searchEvent

type clearStatusMsg struct {
	id int
}

type Model struct {
	service Service
	theme   tuitheme.Theme

	tab     string
	feeds   map[querycache.Operation]feed.State
	pending map[querycache.Operation]bool
	cursors map[string]int
	updates <-chan feed.State

	category       string
	categoryCursor int
	trendingFilter string

	input        textinput.Model
	searchFocus  bool
	searcher     *search.Input
	searchEvents chan searchEvent
	recentCursor int

	settingsCursor int

	inDetail       bool
	detail         wallpaper.ViewModel
	previews       map[string]string
	previewErr     map[string]string
	previewLoading map[string]bool
	clearGraphics  bool

	showHelp bool
	width    int
	height   int
	status   string
	statusID int
	err      error

	openURLFn func(string) error
	copyURLFn func(string) error
	renderFn  func(io.Reader, int) (string, error)
}

func NewModel(service Service) Model {
	ti := textinput.New()
	ti.Placeholder = "search wallpapers"
	ti.CharLimit = 100

	events := make(chan searchEvent, 8)
	m := Model{
		service:        service,
		theme:          tuitheme.Default(),
		tab:            tabCurated,
		trendingFilter: feed.DefaultTrendingFilter,
		feeds:          make(map[querycache.Operation]feed.State),
		pending:        make(map[querycache.Operation]bool),
		cursors:        make(map[string]int),
		input:          ti,
		searchEvents:   events,
		recentCursor:   -1,
		previews:       make(map[string]string),
		previewErr:     make(map[string]string),
		previewLoading: make(map[string]bool),
		openURLFn:      platform.OpenInBrowser,
		copyURLFn:      platform.CopyToClipboard,
		renderFn:       view.RenderPreview,
	}
	m.searcher = search.NewInput(search.DefaultDelay,
		func(q string) { events <- searchEvent{query: q} },
		func() { events <- searchEvent{clear: true} },
	)
	return m
}

// SetFeedUpdates wires a channel of background feed snapshots, e.g. from
// stale-while-revalidate refreshes.
func (m *Model) SetFeedUpdates(updates <-chan feed.State) {
	m.updates = updates
}

// SetSearchDelay replaces the search debounce window.
func (m *Model) SetSearchDelay(d time.Duration) {
	events := m.searchEvents
	m.searcher = search.NewInput(d,
		func(q string) { events <- searchEvent{query: q} },
		func() { events <- searchEvent{clear: true} },
	)
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForSearchCmd(m.searchEvents)}
	if m.updates != nil {
		cmds = append(cmds, actions.WaitForFeedCmd(m.updates))
	}
	if m.service != nil {
		cmds = append(cmds, actions.LoadFeedCmd(m.service, feed.Query{Operation: querycache.OpCurated}, "init"))
	}
	return tea.Batch(cmds...)
}

func waitForSearchCmd(events <-chan searchEvent) tea.Cmd {
	return func() tea.Msg {
		return searchEventMsg(<-events)
	}
}

func clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func (m *Model) setStatus(status string) tea.Cmd {
	m.status = status
	m.statusID++
	return clearStatusCmd(m.statusID, statusTTL)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.clearGraphics = false
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(10, msg.Width-12)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)

	case actions.FeedLoadedMsg:
		m.pending[msg.Operation] = false
		if errors.Is(msg.Err, feed.ErrSuperseded) {
			// The newer query's own load reports its result.
			return m, nil
		}
		m.storeFeed(msg.State)
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		if msg.Source == "refresh" {
			return m, m.setStatus(fmt.Sprintf("Refreshed in %dms", msg.Duration.Milliseconds()))
		}
		return m, nil
	case actions.FeedChangedMsg:
		m.storeFeed(msg.State)
		return m, actions.WaitForFeedCmd(m.updates)
	case searchEventMsg:
		next := waitForSearchCmd(m.searchEvents)
		if msg.clear {
			m.service.ClearSearch()
			delete(m.feeds, querycache.OpSearch)
			m.cursors[tabSearch] = 0
			return m, next
		}
		m.pending[querycache.OpSearch] = true
		m.cursors[tabSearch] = 0
		return m, tea.Batch(next, actions.SearchCmd(m.service, msg.query, "", ""))

	case actions.ToggleFavoriteMsg:
		return m, m.setStatus(msg.Status)
	case actions.DownloadSuccessMsg:
		m.err = nil
		return m, m.setStatus(msg.Status)
	case actions.DownloadErrorMsg:
		m.err = fmt.Errorf("download failed: %w", msg.Err)
		return m, nil
	case actions.PreviewSuccessMsg:
		m.previewLoading[msg.ID] = false
		m.previews[msg.ID] = msg.Preview
		delete(m.previewErr, msg.ID)
		return m, nil
	case actions.PreviewErrorMsg:
		m.previewLoading[msg.ID] = false
		m.previewErr[msg.ID] = msg.Err.Error()
		return m, nil
	case actions.OpenURLSuccessMsg:
		return m, m.setStatus(msg.Status)
	case actions.OpenURLErrorMsg:
		m.err = msg.Err
		return m, nil
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
		}
		return m, nil
	}
	return m, nil
}

// storeFeed keeps the latest snapshot of each operation. Snapshots for a
// category or trending filter other than the one on screen are ignored.
func (m *Model) storeFeed(st feed.State) {
	op := st.Query.Operation
	if op == "" {
		return
	}
	if op == querycache.OpCategory && st.Query.Text != m.category {
		return
	}
	if op == querycache.OpTrending && st.Query.Text != m.trendingFilter {
		return
	}
	m.feeds[op] = st
	tab := m.tabFor(op)
	m.cursors[tab] = state.ClampCursor(m.cursors[tab], len(st.Items))
}

func (m Model) tabFor(op querycache.Operation) string {
	for tab, tabOp := range tabOperation {
		if tabOp == op {
			return tab
		}
	}
	return ""
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if m.searchFocus {
		return m.handleSearchKey(msg)
	}

	if key == "?" {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		switch key {
		case "esc":
			m.showHelp = false
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}
	if m.inDetail {
		return m.handleDetailKey(key)
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "1", "2", "3", "4", "5", "6":
		return m.switchTab(tabs[int(key[0]-'1')].Label)
	case "tab":
		return m.switchTab(tabs[(m.tabIndex()+1)%len(tabs)].Label)
	case "shift+tab":
		return m.switchTab(tabs[(m.tabIndex()+len(tabs)-1)%len(tabs)].Label)
	case "/":
		m.tab = tabSearch
		m.searchFocus = true
		m.recentCursor = -1
		return m, m.input.Focus()
	}

	switch m.tab {
	case tabSettings:
		return m.handleSettingsKey(key)
	case tabCategories:
		if m.category == "" {
			return m.handleCategoryListKey(key)
		}
		if key == "esc" || key == "backspace" {
			m.category = ""
			delete(m.feeds, querycache.OpCategory)
			return m, nil
		}
	case tabTrending:
		if key == "t" {
			return m.cycleTrending()
		}
	case tabFavorites:
		if key == "X" {
			m.service.Favorites().ClearAll()
			m.cursors[tabFavorites] = 0
			return m, m.setStatus("Cleared favorites")
		}
	case tabSearch:
		if key == "C" {
			m.service.Recent().Clear()
			return m, m.setStatus("Cleared recent searches")
		}
	}
	return m.handleGridKey(key)
}

func (m Model) tabIndex() int {
	for i, tab := range tabs {
		if tab.Label == m.tab {
			return i
		}
	}
	return 0
}

func (m Model) switchTab(tab string) (tea.Model, tea.Cmd) {
	m.tab = tab
	op, ok := tabOperation[tab]
	if !ok || op == querycache.OpSearch || op == querycache.OpCategory {
		return m, nil
	}
	if _, loaded := m.feeds[op]; loaded || m.pending[op] || m.service == nil {
		return m, nil
	}
	m.pending[op] = true
	q := feed.Query{Operation: op}
	if op == querycache.OpTrending {
		q.Text = m.trendingFilter
	}
	return m, actions.LoadFeedCmd(m.service, q, "tab")
}

// cycleTrending moves the trending feed to the next filter and reloads it.
func (m Model) cycleTrending() (tea.Model, tea.Cmd) {
	if m.service == nil || m.pending[querycache.OpTrending] {
		return m, nil
	}
	filters := feed.TrendingFilters()
	next := filters[0]
	for i, f := range filters {
		if f == m.trendingFilter {
			next = filters[(i+1)%len(filters)]
			break
		}
	}
	m.trendingFilter = next
	m.cursors[tabTrending] = 0
	delete(m.feeds, querycache.OpTrending)
	m.pending[querycache.OpTrending] = true
	return m, actions.LoadFeedCmd(m.service, feed.Query{Operation: querycache.OpTrending, Text: next}, "filter")
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchFocus = false
		m.input.Blur()
		return m, nil
	case "enter":
		m.searchFocus = false
		m.input.Blur()
		m.searcher.Submit(m.input.Value())
		return m, nil
	case "ctrl+l":
		m.input.SetValue("")
		m.recentCursor = -1
		m.searcher.Clear()
		return m, nil
	case "up", "down":
		list := m.service.Recent().List()
		if len(list) == 0 {
			return m, nil
		}
		if msg.String() == "down" {
			m.recentCursor = state.ClampCursor(m.recentCursor+1, len(list))
		} else {
			m.recentCursor = state.ClampCursor(m.recentCursor-1, len(list))
		}
		m.input.SetValue(list[m.recentCursor])
		m.input.CursorEnd()
		m.searcher.Change(m.input.Value())
		return m, nil
	}
	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != before {
		m.searcher.Change(value)
	}
	return m, cmd
}

func (m Model) handleCategoryListKey(key string) (tea.Model, tea.Cmd) {
	names := feed.Categories()
	switch key {
	case "up", "k":
		m.categoryCursor = state.ClampCursor(m.categoryCursor-1, len(names))
	case "down", "j":
		m.categoryCursor = state.ClampCursor(m.categoryCursor+1, len(names))
	case "enter", "l", "right":
		m.category = names[state.ClampCursor(m.categoryCursor, len(names))]
		m.cursors[tabCategories] = 0
		m.pending[querycache.OpCategory] = true
		return m, actions.LoadFeedCmd(m.service, feed.Query{Operation: querycache.OpCategory, Text: m.category}, "category")
	}
	return m, nil
}

func (m Model) handleSettingsKey(key string) (tea.Model, tea.Cmd) {
	keys := settings.Keys()
	switch key {
	case "up", "k":
		m.settingsCursor = state.ClampCursor(m.settingsCursor-1, len(keys))
	case "down", "j":
		m.settingsCursor = state.ClampCursor(m.settingsCursor+1, len(keys))
	case " ", "space", "enter":
		store := m.service.Settings()
		name := keys[state.ClampCursor(m.settingsCursor, len(keys))]
		current, _ := store.Get().Value(name)
		if err := store.Set(name, !current); err != nil {
			m.err = err
			return m, nil
		}
		return m, m.setStatus(fmt.Sprintf("%s %s", name, onOff(!current)))
	case "R":
		m.service.Settings().Reset()
		return m, m.setStatus("Preferences reset")
	}
	return m, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// items is what the grid on the current tab shows.
func (m Model) items() []wallpaper.ViewModel {
	if m.tab == tabFavorites {
		stored := m.service.Favorites().Items()
		out := make([]wallpaper.ViewModel, len(stored))
		for i, e := range stored {
			out[i] = e.ToViewModel(gridColumnPx)
		}
		return out
	}
	op, ok := tabOperation[m.tab]
	if !ok {
		return nil
	}
	return m.feeds[op].Items
}

func (m Model) current() (wallpaper.ViewModel, bool) {
	items := m.items()
	if len(items) == 0 {
		return wallpaper.ViewModel{}, false
	}
	return items[state.ClampCursor(m.cursors[m.tab], len(items))], true
}

func (m Model) handleGridKey(key string) (tea.Model, tea.Cmd) {
	items := m.items()
	cursor := m.cursors[m.tab]
	op, isFeed := tabOperation[m.tab]

	switch key {
	case "up", "k":
		cursor = state.Move(cursor, len(items), -1, 0)
	case "down", "j":
		cursor = state.Move(cursor, len(items), 1, 0)
	case "left", "h":
		cursor = state.Move(cursor, len(items), 0, -1)
	case "right", "l":
		cursor = state.Move(cursor, len(items), 0, 1)
	case "pgdown", "ctrl+f":
		cursor = state.Move(cursor, len(items), m.pageStep(), 0)
	case "pgup", "ctrl+b":
		cursor = state.Move(cursor, len(items), -m.pageStep(), 0)
	case "g":
		cursor = 0
	case "G":
		cursor = state.ClampCursor(len(items)-1, len(items))
	case "n":
		return m.nextPage()
	case "r":
		if !isFeed || m.pending[op] {
			return m, nil
		}
		if _, loaded := m.feeds[op]; !loaded {
			return m, nil
		}
		m.pending[op] = true
		return m, actions.RefreshCmd(m.service, op)
	case "enter":
		vm, ok := m.current()
		if !ok {
			return m, nil
		}
		return m.openDetail(vm)
	case "f":
		if vm, ok := m.current(); ok {
			return m, actions.ToggleFavoriteCmd(m.service, vm)
		}
		return m, nil
	case "d":
		if vm, ok := m.current(); ok {
			return m, tea.Batch(m.setStatus("Downloading..."), actions.DownloadCmd(m.service, vm))
		}
		return m, nil
	default:
		return m, nil
	}

	m.cursors[m.tab] = cursor
	if isFeed && state.NearEnd(cursor, len(items), endReachedRows) {
		return m.nextPage()
	}
	return m, nil
}

func (m Model) pageStep() int {
	return state.PageStep(m.height, 1, m.status != "" || m.err != nil)
}

func (m Model) nextPage() (tea.Model, tea.Cmd) {
	op, ok := tabOperation[m.tab]
	if !ok || m.pending[op] || m.service == nil {
		return m, nil
	}
	st, loaded := m.feeds[op]
	if !loaded || !st.HasNextPage || st.IsLoading() || st.IsFetchingNextPage() {
		return m, nil
	}
	m.pending[op] = true
	return m, actions.NextPageCmd(m.service, op)
}

func (m Model) openDetail(vm wallpaper.ViewModel) (tea.Model, tea.Cmd) {
	m.inDetail = true
	m.detail = vm
	if m.previewLoading[vm.ID] || m.previews[vm.ID] != "" || vm.PreviewURL == "" {
		return m, nil
	}
	m.previewLoading[vm.ID] = true
	return m, actions.PreviewCmd(m.service, vm, m.contentWidth(), m.renderFn)
}

func (m Model) handleDetailKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "esc", "backspace":
		m.inDetail = false
		m.clearGraphics = view.ContainsKittyGraphicsEscape(m.previews[m.detail.ID])
		return m, nil
	case "q":
		return m, tea.Quit
	case "[", "]":
		items := m.items()
		i := state.IndexByID(items, m.detail.ID)
		if i < 0 {
			return m, nil
		}
		if key == "[" {
			i--
		} else {
			i++
		}
		if i < 0 || i >= len(items) {
			return m, nil
		}
		m.cursors[m.tab] = i
		m.clearGraphics = view.ContainsKittyGraphicsEscape(m.previews[m.detail.ID])
		return m.openDetail(items[i])
	case "f":
		return m, actions.ToggleFavoriteCmd(m.service, m.detail)
	case "d":
		return m, tea.Batch(m.setStatus("Downloading..."), actions.DownloadCmd(m.service, m.detail))
	case "o":
		target, err := platform.ValidateImageURL(m.detail.FullURL)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, actions.OpenURLCmd(target, m.openURLFn, m.copyURLFn)
	case "y":
		target, err := platform.ValidateImageURL(m.detail.FullURL)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, actions.CopyURLCmd(target, m.copyURLFn)
	}
	return m, nil
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) View() string {
	var b strings.Builder
	if m.clearGraphics {
		b.WriteString(view.ClearKittyGraphicsSequence())
	}
	b.WriteString(m.theme.Title.Render("PrismWalls"))
	b.WriteString("  ")
	b.WriteString(view.Tabs(tabs, m.tab, m.theme))
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString("Help (? to close)\n\n")
		b.WriteString(helpView())
		b.WriteString("\n\n")
		b.WriteString(m.messagePanel())
		b.WriteString("\n")
		return b.String()
	}

	mode := "grid"
	switch {
	case m.searchFocus:
		mode = "search"
	case m.inDetail:
		mode = "detail"
	case m.tab == tabSettings:
		mode = "settings"
	}
	b.WriteString(m.theme.ModePill.Render(strings.ToUpper(mode)))
	b.WriteString(" ")
	b.WriteString(view.Toolbar(mode))
	b.WriteString("\n\n")

	switch {
	case m.inDetail:
		b.WriteString(m.detailView())
	case m.tab == tabSettings:
		b.WriteString(m.settingsView())
	case m.tab == tabCategories && m.category == "":
		b.WriteString(m.categoryListView())
	case m.tab == tabSearch:
		b.WriteString(m.searchView())
	default:
		b.WriteString(m.gridView())
	}
	b.WriteString("\n\n")
	b.WriteString(m.messagePanel())
	b.WriteString("\n")
	b.WriteString(m.footer())
	b.WriteString("\n")
	return b.String()
}

func (m Model) gridView() string {
	items := m.items()
	op, isFeed := tabOperation[m.tab]
	st := m.feeds[op]
	if len(items) == 0 {
		switch {
		case isFeed && (m.pending[op] || st.IsLoading()):
			return "Loading wallpapers..."
		case isFeed && st.IsError():
			return "Could not load wallpapers: " + st.Err.Error() + "\nPress r to retry."
		case m.tab == tabFavorites:
			if !m.service.Favorites().IsHydrated() {
				return "Loading favorites..."
			}
			return "No favorites yet. Press f on a wallpaper to keep it here."
		}
		return "No wallpapers found."
	}

	cursor := state.ClampCursor(m.cursors[m.tab], len(items))
	height := m.height - 8
	start, end := state.CenteredWindow(state.GridRows(len(items)), cursor/state.Columns, height)
	favs := m.service.Favorites()
	grid := view.RenderGrid(view.GridParams{
		Items:     items,
		Cursor:    cursor,
		StartRow:  start,
		EndRow:    end,
		Columns:   state.Columns,
		Width:     m.contentWidth(),
		Favorites: favs.IsFavorite,
	}, m.theme)
	if isFeed && st.IsFetchingNextPage() {
		grid += "\nLoading more..."
	}
	return grid
}

func (m Model) searchView() string {
	var b strings.Builder
	b.WriteString("Search: ")
	b.WriteString(m.input.View())
	if m.searcher.Debouncing() {
		b.WriteString("  …")
	}
	b.WriteString("\n\n")

	if m.searcher.Active() == "" {
		list := m.service.Recent().List()
		if len(list) == 0 {
			b.WriteString("Type at least 2 characters to search.")
			return b.String()
		}
		b.WriteString(m.theme.MetaLabel.Render("Recent searches (C clears)"))
		for i, q := range list {
			b.WriteString("\n")
			b.WriteString(m.theme.RenderCard(i == m.recentCursor, "  "+q))
		}
		return b.String()
	}
	b.WriteString(m.gridView())
	return b.String()
}

func (m Model) categoryListView() string {
	names := feed.Categories()
	lines := make([]string, 0, len(names)+1)
	lines = append(lines, m.theme.MetaLabel.Render("Pick a category (enter)"))
	cursor := state.ClampCursor(m.categoryCursor, len(names))
	for i, name := range names {
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		lines = append(lines, m.theme.RenderCard(i == cursor, marker+name))
	}
	return strings.Join(lines, "\n")
}

func (m Model) settingsView() string {
	prefs := m.service.Settings().Get()
	keys := settings.Keys()
	cursor := state.ClampCursor(m.settingsCursor, len(keys))
	lines := make([]string, 0, len(keys))
	for i, key := range keys {
		value, _ := prefs.Value(key)
		marker := "  "
		if i == cursor {
			marker = "> "
		}
		lines = append(lines, marker+m.theme.RenderToggle(value)+" "+m.theme.RenderCard(i == cursor, key))
	}
	return strings.Join(lines, "\n")
}

func (m Model) detailView() string {
	favorite := m.service.Favorites().IsFavorite(m.detail.ID)
	lines := view.DetailLines(m.detail, favorite, m.contentWidth())
	lines = append(lines, "", m.theme.Swatch(m.detail.AvgColor, min(24, m.contentWidth())))

	id := m.detail.ID
	switch {
	case m.previewLoading[id]:
		lines = append(lines, "", "Preview: loading...")
	case strings.TrimSpace(m.previews[id]) != "":
		preview := m.previews[id]
		lines = append(lines, "", preview)
		// Kitty images can be shorter than the rows they were sized for.
		if view.ContainsKittyGraphicsEscape(preview) {
			for pad := view.PreviewRows - view.KittyRenderedLineCount(preview); pad > 0; pad-- {
				lines = append(lines, "")
			}
		}
	case m.previewErr[id] != "":
		lines = append(lines, "", "Preview unavailable: "+m.previewErr[id])
	}
	return strings.Join(lines, "\n")
}

func (m Model) messagePanel() string {
	warning := ""
	if m.err != nil {
		warning = m.err.Error()
	}
	op, isFeed := tabOperation[m.tab]
	loading := isFeed && m.pending[op]
	return view.Message(loading, m.err != nil, m.status, warning, m.theme)
}

func (m Model) footer() string {
	p := view.FooterParams{Feed: strings.ToLower(m.tab)}
	if m.service != nil {
		p.Favorites = m.service.Favorites().Count()
	}
	if op, ok := tabOperation[m.tab]; ok {
		st := m.feeds[op]
		p.Feed = string(op)
		p.Query = st.Query.Text
		p.Pages = st.Pages
		p.Shown = len(st.Items)
		p.Total = st.TotalResults
		p.HasMore = st.HasNextPage
		p.Refreshing = st.Refreshing
	} else if m.tab == tabFavorites {
		p.Shown = p.Favorites
		p.Total = p.Favorites
		p.HasMore = true
	}
	return view.Footer(p, m.theme)
}

func helpView() string {
	lines := []string{
		"Navigation:",
		"  h/j/k/l or arrows move in the grid, g/G jump top/bottom, pgup/pgdown jump",
		"  1-6 or tab/shift+tab switch tabs",
		"Feeds:",
		"  the next page loads as you reach the end, n loads it now, r refreshes",
		"  t cycles the trending filter (today, week, month, all)",
		"Wallpapers:",
		"  enter opens details, f toggles favorite, d downloads",
		"  in details: [ ] prev/next, o open in browser, y copy URL",
		"Search:",
		"  / focuses the box, enter searches now, ctrl+l clears, up/down picks a recent search",
		"Other:",
		"  X clears favorites, C clears recent searches, space toggles a preference, R resets them",
	}
	return strings.Join(lines, "\n")
}
