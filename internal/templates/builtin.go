package templates

// Template names used by the scanners. Each has a ".title" companion used as
// the notification title and email subject.
const (
	BillReminder     = "bill_reminder"
	DeadlineReminder = "deadline_reminder"
	BudgetAlert      = "budget_alert"
	GoalMilestone    = "goal_milestone"
	GoalDeadline     = "goal_deadline"
	PostPublished    = "post_published"
	PostFailed       = "post_failed"
	Digest           = "digest"
	DigestItem       = "digest_item"
	TestPush         = "test_push"
)

// Title returns the name of the title template for name.
func Title(name string) string {
	return name + ".title"
}

var builtin = map[string]map[string]string{
	"id": {
		BillReminder:            "🔔 Pengingat Tagihan\n\nTagihan {bill_name} sebesar {amount} akan jatuh tempo dalam {days_before} hari, pada {due_date}.\nKategori: {category}\n\nJangan lupa untuk membayar tepat waktu ya!",
		Title(BillReminder):     "Tagihan {bill_name} jatuh tempo {days_before} hari lagi",
		DeadlineReminder:        "Tenggat {kind} \"{title}\" tinggal {days_before} hari lagi ({due_date}).",
		Title(DeadlineReminder): "Tenggat {title} semakin dekat",
		BudgetAlert:             "Pengeluaran proyek {project} sudah mencapai {percent}% dari anggaran ({spent} dari {budget}) untuk periode {period}.",
		Title(BudgetAlert):      "Anggaran {project} mencapai {percent}%",
		GoalMilestone:           "Selamat! Target \"{title}\" sudah tercapai {milestone}% ({current} dari {target}).",
		Title(GoalMilestone):    "Target {title} mencapai {milestone}%",
		GoalDeadline:            "Target \"{title}\" berakhir dalam {days_before} hari ({due_date}). Progres saat ini {percent}%.",
		Title(GoalDeadline):     "Target {title} segera berakhir",
		PostPublished:           "Postingan {platform} kamu berhasil dipublikasikan: {preview}",
		Title(PostPublished):    "Postingan {platform} terbit",
		PostFailed:              "Postingan {platform} gagal dipublikasikan: {error}",
		Title(PostFailed):       "Postingan {platform} gagal",
		Digest:                  "Halo {name},\n\nBerikut ringkasan {count} notifikasi yang belum dibaca:\n\n{items}\n\nBuka aplikasi untuk detailnya.",
		Title(Digest):           "Ringkasan notifikasi kamu ({count})",
		DigestItem:              "• {title}: {message}",
		TestPush:                "Notifikasi push berfungsi dengan baik!",
		Title(TestPush):         "Notifikasi uji coba",
	},
	"en": {
		BillReminder:            "🔔 Bill Reminder\n\nYour {bill_name} bill of {amount} is due in {days_before} days, on {due_date}.\nCategory: {category}\n\nDon't forget to pay on time!",
		Title(BillReminder):     "{bill_name} bill due in {days_before} days",
		DeadlineReminder:        "The {kind} \"{title}\" is due in {days_before} days ({due_date}).",
		Title(DeadlineReminder): "{title} deadline approaching",
		BudgetAlert:             "Spending on {project} has reached {percent}% of its budget ({spent} of {budget}) for {period}.",
		Title(BudgetAlert):      "{project} budget at {percent}%",
		GoalMilestone:           "Nice work! \"{title}\" is {milestone}% complete ({current} of {target}).",
		Title(GoalMilestone):    "{title} reached {milestone}%",
		GoalDeadline:            "Your goal \"{title}\" ends in {days_before} days ({due_date}). Current progress: {percent}%.",
		Title(GoalDeadline):     "{title} ends soon",
		PostPublished:           "Your {platform} post was published: {preview}",
		Title(PostPublished):    "{platform} post published",
		PostFailed:              "Your {platform} post failed to publish: {error}",
		Title(PostFailed):       "{platform} post failed",
		Digest:                  "Hi {name},\n\nHere is a summary of your {count} unread notifications:\n\n{items}\n\nOpen the app for details.",
		Title(Digest):           "Your notification digest ({count})",
		DigestItem:              "• {title}: {message}",
		TestPush:                "Push notifications are working!",
		Title(TestPush):         "Test Notification",
	},
}
