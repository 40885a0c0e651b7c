package cmd

import (
	"strconv"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/ascentapp/ascent/frontend/client"
	"github.com/ascentapp/ascent/lib/utils"
)

// readNonEmpty prompts until the user enters a non-empty line.
func readNonEmpty(c *ishell.Context, prompt string) string {
	for {
		c.Print(prompt)
		line := strings.TrimSpace(c.ReadLine())
		if line != "" {
			return line
		}
		c.Println("Input cannot be empty.")
	}
}

// readInt prompts until the user enters an integer in [min, max].
func readInt(c *ishell.Context, prompt string, min, max int) int {
	for {
		c.Print(prompt)
		line := strings.TrimSpace(c.ReadLine())
		n, err := strconv.Atoi(line)
		if err == nil && n >= min && n <= max {
			return n
		}
		c.Printf("Please enter a number between %d and %d.\n", min, max)
	}
}

// checkbox renders a completion state for list output.
func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// trackerCommands builds the habit, rule, challenge and summary commands
// available to a signed-in user.
func trackerCommands() []Command {
	return []Command{
		{
			Name: "habits",
			Desc: "List your habits with their streaks",
			Func: func(c *ishell.Context) {
				habits, err := client.ListHabits()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if len(habits) == 0 {
					c.Println("No habits yet. Create one with 'newhabit'.")
					return
				}
				for _, h := range habits {
					c.Printf("%s %s  (streak: %d, best: %d)\n", checkbox(h.CompletedToday), utils.Truncate(h.Title, 40), h.CurrentStreak, h.LongestStreak)
					c.Printf("    id: %s\n", h.ID)
				}
			},
		},
		{
			Name: "newhabit",
			Desc: "Create a new habit",
			Func: func(c *ishell.Context) {
				title := readNonEmpty(c, "Habit title: ")
				c.Print("Category (optional): ")
				category := strings.TrimSpace(c.ReadLine())

				var reminderHour *int
				c.Print("Daily reminder email? (yes/no): ")
				if strings.ToLower(strings.TrimSpace(c.ReadLine())) == "yes" {
					hour := readInt(c, "Reminder hour (0-23): ", 0, 23)
					reminderHour = &hour
				}

				habit, err := client.CreateHabit(title, category, reminderHour)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Habit '%s' created.\n", habit.Title)
			},
		},
		{
			Name: "togglehabit",
			Desc: "Mark or unmark a habit as done for today",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Habit id: ")
				habit, err := client.ToggleHabit(id)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if habit.CompletedToday {
					c.Printf("Done. '%s' is checked off for today, streak is %d.\n", habit.Title, habit.CurrentStreak)
				} else {
					c.Printf("'%s' is unmarked for today, streak is %d.\n", habit.Title, habit.CurrentStreak)
				}
			},
		},
		{
			Name: "habithistory",
			Desc: "Show a habit's completion history",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Habit id: ")
				history, err := client.HabitHistory(id)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if len(history) == 0 {
					c.Println("No history yet.")
					return
				}
				for _, record := range history {
					c.Printf("%s %s\n", checkbox(record.Completed), record.Day)
				}
			},
		},
		{
			Name: "deletehabit",
			Desc: "Delete a habit and its history",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Habit id: ")
				if err := client.DeleteHabit(id); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Habit deleted.")
			},
		},
		{
			Name: "rules",
			Desc: "List your rules with their streaks",
			Func: func(c *ishell.Context) {
				rules, err := client.ListRules()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if len(rules) == 0 {
					c.Println("No rules yet. Create one with 'newrule'.")
					return
				}
				for _, r := range rules {
					c.Printf("%s %s  (streak: %d, best: %d)\n", checkbox(r.CompletedToday), utils.Truncate(r.Title, 40), r.CurrentStreak, r.LongestStreak)
					c.Printf("    id: %s\n", r.ID)
				}
			},
		},
		{
			Name: "newrule",
			Desc: "Create a new rule to stick to",
			Func: func(c *ishell.Context) {
				title := readNonEmpty(c, "Rule title: ")
				c.Print("Category (optional): ")
				category := strings.TrimSpace(c.ReadLine())

				rule, err := client.CreateRule(title, category)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Rule '%s' created.\n", rule.Title)
			},
		},
		{
			Name: "togglerule",
			Desc: "Mark or unmark a rule as kept for today",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Rule id: ")
				rule, err := client.ToggleRule(id)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if rule.CompletedToday {
					c.Printf("Done. '%s' is marked kept for today, streak is %d.\n", rule.Title, rule.CurrentStreak)
				} else {
					c.Printf("'%s' is unmarked for today, streak is %d.\n", rule.Title, rule.CurrentStreak)
				}
			},
		},
		{
			Name: "breakrule",
			Desc: "Record a slip-up on a rule",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Rule id: ")
				rule, err := client.BreakRule(id)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Slip-up recorded for '%s'. Streak reset, your best run of %d days still stands.\n", rule.Title, rule.LongestStreak)
			},
		},
		{
			Name: "deleterule",
			Desc: "Delete a rule and its history",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Rule id: ")
				if err := client.DeleteRule(id); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Rule deleted.")
			},
		},
		{
			Name: "challenges",
			Desc: "List your challenges with their progress",
			Func: func(c *ishell.Context) {
				challenges, err := client.ListChallenges()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				if len(challenges) == 0 {
					c.Println("No challenges yet. Create one with 'newchallenge'.")
					return
				}
				for _, ch := range challenges {
					c.Printf("%s  day %d of %d, %d%% complete (%d days done)\n", utils.Truncate(ch.Title, 40), ch.ElapsedDay, ch.Duration, ch.ProgressPercent, len(ch.CompletedDays))
					c.Printf("    id: %s\n", ch.ID)
				}
			},
		},
		{
			Name: "newchallenge",
			Desc: "Start a new fixed-duration challenge",
			Func: func(c *ishell.Context) {
				title := readNonEmpty(c, "Challenge title: ")
				duration := readInt(c, "Duration in days (e.g. 30): ", 1, 3650)

				challenge, err := client.CreateChallenge(title, duration)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Challenge '%s' started. %d days ahead of you.\n", challenge.Title, challenge.Duration)
			},
		},
		{
			Name: "checkoff",
			Desc: "Check off (or uncheck) a day of a challenge",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Challenge id: ")
				day := readInt(c, "Day number: ", 1, 3650)

				completed := true
				c.Print("Mark as done? (yes to mark, no to unmark): ")
				if strings.ToLower(strings.TrimSpace(c.ReadLine())) == "no" {
					completed = false
				}

				challenge, err := client.CheckOffDay(id, day, completed)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("'%s' is now %d%% complete.\n", challenge.Title, challenge.ProgressPercent)
			},
		},
		{
			Name: "deletechallenge",
			Desc: "Delete a challenge and its day logs",
			Func: func(c *ishell.Context) {
				id := readNonEmpty(c, "Challenge id: ")
				if err := client.DeleteChallenge(id); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Challenge deleted.")
			},
		},
		{
			Name: "summary",
			Desc: "Show aggregate stats across your habits and rules",
			Func: func(c *ishell.Context) {
				summary, err := client.GetSummary()
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Your progress today:")
				c.Printf("  completion rate:   %.1f%%\n", summary.CompletionRate)
				c.Printf("  average streak:    %.1f days\n", summary.AverageStreak)
				c.Printf("  consistency score: %.1f%%\n", summary.ConsistencyScore)
			},
		},
	}
}
