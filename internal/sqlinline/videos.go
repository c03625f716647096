package sqlinline

const QInsertVideoJob = `--sql edff4d62-bc4e-4f30-bbea-11b31b580686
insert into video_jobs(
  id,
  external_id,
  name,
  prompt,
  model,
  resolution,
  duration_seconds,
  status,
  cost,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::int,
  $8::text,
  $9::numeric,
  $10::timestamptz,
  $10::timestamptz
)
returning id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at;
`

const QSelectVideoJobByID = `--sql fe44ff1c-4c7e-48c2-b2c3-2ec5744d8a2e
select id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at
from video_jobs
where id = $1::uuid
limit 1;
`

const QSelectVideoJobByExternalID = `--sql 4b21e174-31fb-4e00-994f-9b7757bb0193
select id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at
from video_jobs
where external_id = $1::text
limit 1;
`

const QListVideoJobs = `--sql c01808a2-94b7-4172-9cd1-4345d2556448
select id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at
from video_jobs
order by created_at desc, id desc;
`

const QListActiveVideoJobs = `--sql 4135ed0f-a21f-4848-88aa-f49e1c39899a
select id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at
from video_jobs
where status in ('pending', 'processing')
order by created_at asc, id asc;
`

// QUpdateVideoJobStatus only matches rows whose current status is listed in
// $5, so a concurrent backward write cannot slip through.
const QUpdateVideoJobStatus = `--sql 0f5db35b-8eb4-4457-a53a-dbfa0f5b9c5d
update video_jobs
set status = $2::text,
    output_url = $3::text,
    thumbnail_url = $4::text,
    updated_at = now()
where id = $1::uuid
  and status = any($5::text[])
returning id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at;
`

const QRenameVideoJob = `--sql ebb946ce-ea0d-4d6f-b1a5-828757b03741
update video_jobs
set name = $2::text,
    updated_at = now()
where id = $1::uuid
returning id, external_id, name, prompt, model, resolution, duration_seconds,
  status, output_url, thumbnail_url, cost, created_at, updated_at;
`

const QDeleteVideoJob = `--sql 2bd1142b-5906-4bf0-8377-a025f791c80b
delete from video_jobs
where id = $1::uuid;
`
