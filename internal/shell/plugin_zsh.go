package shell

// ZshPlugin is the zsh plugin source. Inside a recorded terminal it prefixes
// the prompt with [rec], or [rec paused] while logging is paused.
const ZshPlugin = `# termlog shell plugin, generated by termlog setup
# Source this file from your ~/.zshrc:
#   source ~/.config/termlog/termlog.plugin.zsh

_termlog_precmd() {
  psvar[1]=""
  [[ -n "$TERMLOG_SESSION" ]] || return
  local record="${XDG_DATA_HOME:-$HOME/.local/share}/termlog/sessions/$TERMLOG_SESSION.json"
  if [[ ! -f "$record" ]]; then
    return
  elif grep -q '"paused":true' "$record" 2>/dev/null; then
    psvar[1]="[rec paused] "
  else
    psvar[1]="[rec] "
  fi
}

autoload -Uz add-zsh-hook
add-zsh-hook precmd _termlog_precmd
PROMPT='%1v'"$PROMPT"
`
