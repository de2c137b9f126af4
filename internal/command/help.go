package command

// HelpText is the reply to /timer help. Telegram HTML.
const HelpText = `<b>Timer bot</b>
<code>/timer add 1h30m [message]</code> set a reminder (aliases: + a set s)
<code>/timer remove</code> as a reply to the request, or with its link or id (aliases: - r delete d)
<code>/timer list [-a]</code> your reminders, or everyone's with -a (aliases: l ls)
<code>/timer status</code> scheduler status, bot owners only (alias: st)

Durations combine w, d, h, m and s, each at most once: <code>2d</code>, <code>1w3h</code>, <code>45m10s</code>.
Reminders are kept in memory and are lost if the bot restarts.`
