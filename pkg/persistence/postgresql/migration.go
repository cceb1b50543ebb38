package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE cases (
				id VARCHAR(64) PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				owner VARCHAR(255) NOT NULL,
				status VARCHAR(64) NOT NULL,
				stages JSONB NOT NULL DEFAULT '{}',
				artifacts JSONB NOT NULL DEFAULT '{}',
				version BIGINT NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_cases_status ON cases(status);
			CREATE INDEX idx_cases_owner ON cases(owner);
			CREATE INDEX idx_cases_created_at ON cases(created_at);
			CREATE INDEX idx_cases_updated_at ON cases(updated_at);

			-- Audit trail: rows are only ever inserted.
			CREATE TABLE case_history (
				case_id VARCHAR(64) NOT NULL REFERENCES cases(id),
				seq INTEGER NOT NULL,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
				actor VARCHAR(255) NOT NULL,
				event_type VARCHAR(64) NOT NULL,
				stage VARCHAR(64) NOT NULL DEFAULT '',
				from_status VARCHAR(64) NOT NULL DEFAULT '',
				to_status VARCHAR(64) NOT NULL DEFAULT '',
				detail TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (case_id, seq)
			);

			CREATE INDEX idx_case_history_event_type ON case_history(case_id, event_type);
		`,
	}
}
